package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/noah-isme/course-market-api/internal/models"
	"github.com/noah-isme/course-market-api/internal/repository"
)

func pairKey(studentID, courseID string) string {
	return studentID + "|" + courseID
}

type mockCourseReader struct {
	courses map[string]models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseReader) FindByIDs(ctx context.Context, ids []string) (map[string]models.Course, error) {
	result := make(map[string]models.Course, len(ids))
	for _, id := range ids {
		if c, ok := m.courses[id]; ok {
			result[id] = c
		}
	}
	return result, nil
}

type mockUserChecker struct {
	active map[string]bool
}

func (m *mockUserChecker) ExistsActive(ctx context.Context, id string) (bool, error) {
	return m.active[id], nil
}

type mockEnrollmentRepo struct {
	pairs      map[string]bool
	createErr  error
	deleteErr  error
	deleteMiss bool
	created    []string
	deleted    []string
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	return m.pairs[pairKey(studentID, courseID)], nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	key := pairKey(enrollment.StudentID, enrollment.CourseID)
	if m.pairs[key] {
		return repository.ErrDuplicate
	}
	if m.pairs == nil {
		m.pairs = make(map[string]bool)
	}
	m.pairs[key] = true
	m.created = append(m.created, enrollment.CourseID)
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, studentID, courseID string) (bool, error) {
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	if m.deleteMiss {
		return false, nil
	}
	key := pairKey(studentID, courseID)
	if !m.pairs[key] {
		return false, nil
	}
	delete(m.pairs, key)
	m.deleted = append(m.deleted, courseID)
	return true, nil
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return nil, nil
}

type mockOrderRepo struct {
	orders    map[string]models.Order
	items     map[string][]models.OrderItem
	created   *models.Order
	deleteErr error
	deleted   bool
}

func (m *mockOrderRepo) Create(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	if m.orders == nil {
		m.orders = make(map[string]models.Order)
	}
	if m.items == nil {
		m.items = make(map[string][]models.OrderItem)
	}
	m.orders[order.ID] = *order
	m.items[order.ID] = items
	m.created = order
	return nil
}

func (m *mockOrderRepo) FindByIDForUser(ctx context.Context, id, userID string) (*models.Order, error) {
	if o, ok := m.orders[id]; ok && o.UserID == userID {
		return &o, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockOrderRepo) FindByInvoiceID(ctx context.Context, invoiceID string) (*models.Order, error) {
	for _, o := range m.orders {
		if o.InvoiceID == invoiceID {
			return &o, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockOrderRepo) ItemsByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockOrderRepo) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var list []models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			list = append(list, o)
		}
	}
	return list, nil
}

func (m *mockOrderRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	if m.deleteErr != nil {
		return false, m.deleteErr
	}
	if o, ok := m.orders[id]; !ok || o.UserID != userID {
		return false, nil
	}
	delete(m.orders, id)
	m.deleted = true
	return true, nil
}

type mockCertificateRepo struct {
	certs     []models.Certificate
	createErr error
}

func (m *mockCertificateRepo) Create(ctx context.Context, cert *models.Certificate) error {
	if m.createErr != nil {
		return m.createErr
	}
	if cert.ID == "" {
		cert.ID = "cert-new"
	}
	m.certs = append(m.certs, *cert)
	return nil
}

func (m *mockCertificateRepo) ListByStudentAndCourse(ctx context.Context, studentID, courseID string) ([]models.Certificate, error) {
	var list []models.Certificate
	for _, c := range m.certs {
		if c.StudentID == studentID && c.CourseID == courseID {
			list = append(list, c)
		}
	}
	return list, nil
}

func (m *mockCertificateRepo) ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	var list []models.CertificateDetail
	for _, c := range m.certs {
		if c.StudentID == studentID {
			list = append(list, models.CertificateDetail{Certificate: c})
		}
	}
	return list, nil
}

type mockDiplomaRepo struct {
	diplomas  map[string]models.Diploma
	createErr error
	created   *models.Diploma
}

func (m *mockDiplomaRepo) Create(ctx context.Context, diploma *models.Diploma) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, d := range m.diplomas {
		if d.StudentID == diploma.StudentID && d.CurriculumID == diploma.CurriculumID {
			return repository.ErrDuplicate
		}
	}
	if m.diplomas == nil {
		m.diplomas = make(map[string]models.Diploma)
	}
	if diploma.ID == "" {
		diploma.ID = "dip-new"
	}
	m.diplomas[diploma.ID] = *diploma
	m.created = diploma
	return nil
}

func (m *mockDiplomaRepo) FindByID(ctx context.Context, id string) (*models.Diploma, error) {
	if d, ok := m.diplomas[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDiplomaRepo) FindByStudentAndCurriculum(ctx context.Context, studentID, curriculumID string) (*models.Diploma, error) {
	for _, d := range m.diplomas {
		if d.StudentID == studentID && d.CurriculumID == curriculumID {
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockDiplomaRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Diploma, error) {
	var list []models.Diploma
	for _, d := range m.diplomas {
		if d.StudentID == studentID {
			list = append(list, d)
		}
	}
	return list, nil
}

func (m *mockDiplomaRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.diplomas[id]; !ok {
		return false, nil
	}
	delete(m.diplomas, id)
	return true, nil
}

type mockCurriculumReader struct {
	curriculums map[string]models.Curriculum
	courseIDs   map[string][]string
}

func (m *mockCurriculumReader) FindByID(ctx context.Context, id string) (*models.Curriculum, error) {
	if c, ok := m.curriculums[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCurriculumReader) CourseIDs(ctx context.Context, curriculumID string) ([]string, error) {
	return m.courseIDs[curriculumID], nil
}

func (m *mockCurriculumReader) List(ctx context.Context) ([]models.Curriculum, error) {
	var list []models.Curriculum
	for _, c := range m.curriculums {
		list = append(list, c)
	}
	return list, nil
}

type mockCertifiedReader struct {
	certified map[string][]string
}

func (m *mockCertifiedReader) CertifiedCourseIDs(ctx context.Context, studentID string, courseIDs []string) ([]string, error) {
	held := make(map[string]bool)
	for _, id := range m.certified[studentID] {
		held[id] = true
	}
	var result []string
	for _, id := range courseIDs {
		if held[id] {
			result = append(result, id)
		}
	}
	return result, nil
}

func upcomingCourse(id, trainerID string, price int64) models.Course {
	now := time.Now().UTC()
	return models.Course{
		ID:        id,
		Name:      "Course " + id,
		Price:     price,
		StartAt:   now.Add(48 * time.Hour),
		EndAt:     now.Add(14 * 24 * time.Hour),
		TrainerID: trainerID,
	}
}

func startedCourse(id, trainerID string, price int64) models.Course {
	now := time.Now().UTC()
	return models.Course{
		ID:        id,
		Name:      "Course " + id,
		Price:     price,
		StartAt:   now.Add(-48 * time.Hour),
		EndAt:     now.Add(7 * 24 * time.Hour),
		TrainerID: trainerID,
	}
}

func endedCourse(id, trainerID string, endedAgo time.Duration) models.Course {
	now := time.Now().UTC()
	return models.Course{
		ID:        id,
		Name:      "Course " + id,
		StartAt:   now.Add(-30 * 24 * time.Hour),
		EndAt:     now.Add(-endedAgo),
		TrainerID: trainerID,
	}
}
