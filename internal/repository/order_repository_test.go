package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-market-api/internal/models"
)

func TestOrderRepositoryCreateCommitsOrderAndItems(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order := &models.Order{ID: "ord-1", UserID: "user-1", TotalPrice: 250, InvoiceID: "inv-1", Status: models.OrderStatusPaid, OrderDate: time.Now().UTC()}
	items := []models.OrderItem{
		{OrderID: "ord-1", CourseID: "course-1", CourseName: "Intro to Go", Price: 100},
		{OrderID: "ord-1", CourseID: "course-2", CourseName: "SQL Basics", Price: 150},
	}
	require.NoError(t, repo.Create(context.Background(), order, items))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryCreateRollsBackOnItemFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	order := &models.Order{ID: "ord-1", UserID: "user-1", TotalPrice: 100, InvoiceID: "inv-1", Status: models.OrderStatusPaid, OrderDate: time.Now().UTC()}
	items := []models.OrderItem{{OrderID: "ord-1", CourseID: "course-1", CourseName: "Intro to Go", Price: 100}}
	require.Error(t, repo.Create(context.Background(), order, items))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryFindByIDForUser(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "total_price", "invoice_id", "status", "order_date"}).
		AddRow("ord-1", "user-1", 100, "inv-1", models.OrderStatusPaid, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, total_price, invoice_id, status, order_date FROM orders WHERE id = $1 AND user_id = $2")).
		WithArgs("ord-1", "user-1").
		WillReturnRows(rows)

	order, err := repo.FindByIDForUser(context.Background(), "ord-1", "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(100), order.TotalPrice)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryDeleteRemovesOwnedOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items")).
		WithArgs("ord-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1 AND user_id = $2")).
		WithArgs("ord-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := repo.Delete(context.Background(), "ord-1", "user-1")
	require.NoError(t, err)
	require.True(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryDeleteRollsBackWhenOrderNotOwned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	// Even if the backend reports item rows removed, a miss on the order row
	// must roll the transaction back so the items survive with the order.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items")).
		WithArgs("ord-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1 AND user_id = $2")).
		WithArgs("ord-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	deleted, err := repo.Delete(context.Background(), "ord-1", "user-2")
	require.NoError(t, err)
	require.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepositoryDeleteScopesItemPurgeToOwner(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOrderRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_items\n        WHERE order_id IN (SELECT id FROM orders WHERE id = $1 AND user_id = $2)")).
		WithArgs("ord-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = $1 AND user_id = $2")).
		WithArgs("ord-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	deleted, err := repo.Delete(context.Background(), "ord-1", "user-2")
	require.NoError(t, err)
	require.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
