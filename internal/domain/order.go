package domain

import "time"

// StepStatus is the lifecycle of a single O2D step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusAssigned  StepStatus = "ASSIGNED"
	StepStatusCompleted StepStatus = "COMPLETED"
)

// OrderStatus is derived from the statuses of an order's steps.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusComplete   OrderStatus = "COMPLETE"
)

// OrderItem is a line on an order.
type OrderItem struct {
	ID       string
	ItemName string
	Qty      int
}

// Step is one unit of order-to-delivery work, owned by exactly one order.
type Step struct {
	ID              string
	OrderID         string
	StepName        string
	DependencyGroup int
	Position        int
	AssignedTo      *string
	PlannedDate     *time.Time
	ActualDate      *time.Time
	Status          StepStatus
	Remarks         string
	CompletedBy     *string
	UpdatedAt       time.Time
}

// StepTemplate describes a step created for every new order.
type StepTemplate struct {
	Name            string `yaml:"name" json:"name"`
	DependencyGroup int    `yaml:"dependency_group" json:"dependency_group"`
}

// Order is the order-to-delivery aggregate.
type Order struct {
	ID            string
	OrderNo       string
	PartyName     string
	CustomerType  string
	ContactPerson string
	ContactNumber string
	ContactEmail  string
	Address       string
	Items         []OrderItem
	Steps         []Step
	CreatedBy     string
	Version       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OverallStatus derives the order status from its steps.
func (o *Order) OverallStatus() OrderStatus {
	if len(o.Steps) == 0 {
		return OrderStatusPending
	}
	completed, started := 0, false
	for _, step := range o.Steps {
		switch step.Status {
		case StepStatusCompleted:
			completed++
			started = true
		case StepStatusAssigned:
			started = true
		}
	}
	if completed == len(o.Steps) {
		return OrderStatusComplete
	}
	if started {
		return OrderStatusInProgress
	}
	return OrderStatusPending
}

// StepByID returns a pointer into o.Steps.
func (o *Order) StepByID(id string) *Step {
	for i := range o.Steps {
		if o.Steps[i].ID == id {
			return &o.Steps[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	cp.Steps = make([]Step, len(o.Steps))
	copy(cp.Steps, o.Steps)
	return &cp
}
