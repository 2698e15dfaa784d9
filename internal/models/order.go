package models

import "time"

// OrderStatus represents the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is an immutable purchase record. Its items freeze course name and
// price at commit time; the only permitted mutation is deletion of the whole
// order while none of its courses have started.
type Order struct {
	ID         string      `db:"id" json:"id"`
	UserID     string      `db:"user_id" json:"user_id"`
	TotalPrice int64       `db:"total_price" json:"total_price"`
	InvoiceID  string      `db:"invoice_id" json:"invoice_id"`
	Status     OrderStatus `db:"status" json:"status"`
	OrderDate  time.Time   `db:"order_date" json:"order_date"`
}

// OrderItem is a frozen snapshot of one course at purchase time.
type OrderItem struct {
	OrderID    string `db:"order_id" json:"order_id"`
	CourseID   string `db:"course_id" json:"course_id"`
	CourseName string `db:"course_name" json:"course_name"`
	Price      int64  `db:"price" json:"price"`
}

// OrderDetail bundles an order with its frozen items.
type OrderDetail struct {
	Order
	Items []OrderItem `json:"items"`
}
