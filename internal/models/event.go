package models

// EventType is the envelope discriminator pushed by the farm backend.
type EventType string

// Batch events
const (
	BatchCreated       EventType = "batch_created"
	BatchUpdated       EventType = "batch_updated"
	BatchDeleted       EventType = "batch_deleted"
	BatchStatusChanged EventType = "batch_status_changed"
	BatchMortality     EventType = "batch_mortality_recorded"
	BatchWeightLogged  EventType = "batch_weight_recorded"
	ReadyForSlaughter  EventType = "ready_for_slaughter"
	SlaughterCompleted EventType = "slaughter_completed"
)

// Section events
const (
	SectionCreated         EventType = "section_created"
	SectionUpdated         EventType = "section_updated"
	SectionDeleted         EventType = "section_deleted"
	SectionCapacityWarning EventType = "section_capacity_warning"
)

// Management task events
const (
	TaskCreated             EventType = "task_created"
	TaskAssigned            EventType = "task_assigned"
	TaskUpdated             EventType = "task_updated"
	TaskStatusChanged       EventType = "task_status_changed"
	TaskCommentAdded        EventType = "task_comment_added"
	TaskDeadlineApproaching EventType = "task_deadline_approaching"
	TaskCompleted           EventType = "task_completed"
	TaskOverdue             EventType = "task_overdue"
	TaskDeleted             EventType = "task_deleted"
)

// Alert events
const (
	EmergencyAlert EventType = "emergency_alert"
	InventoryAlert EventType = "inventory_alert"
	AlertResolved  EventType = "alert_resolved"
)

// Inventory events
const (
	LowInventoryUpdate  EventType = "low_inventory_update"
	InventoryUpdated    EventType = "inventory_updated"
	InventoryItemAdded  EventType = "inventory_item_added"
	StockMovement       EventType = "stock_movement"
	InventoryRestocked  EventType = "inventory_restocked"
	InventoryItemExpiry EventType = "inventory_item_expiring"
)

// Feed events
const (
	FeedRecorded        EventType = "feed_recorded"
	FeedScheduleUpdated EventType = "feed_schedule_updated"
	FeedStockLow        EventType = "feed_stock_low"
)

// Report events
const (
	ProductionReport   EventType = "production_report"
	ReportGenerated    EventType = "report_generated"
	ReportApproved     EventType = "report_approved"
	MeatProductionLog  EventType = "meat_production_recorded"
	CanteenOrderPlaced EventType = "canteen_order_created"
	CanteenMenuUpdated EventType = "canteen_menu_updated"
)

// User, position and attendance events
const (
	UserCreated        EventType = "user_created"
	UserUpdated        EventType = "user_updated"
	UserDeactivated    EventType = "user_deactivated"
	UserLoggedIn       EventType = "user_login"
	PositionCreated    EventType = "position_created"
	PositionUpdated    EventType = "position_updated"
	AttendanceCheckIn  EventType = "attendance_checkin"
	AttendanceCheckOut EventType = "attendance_checkout"
	AttendanceMarked   EventType = "attendance_marked"
)

// System events
const (
	SystemNotification EventType = "system_notification"
	SystemMaintenance  EventType = "system_maintenance"
	ConnectionAck      EventType = "connection_established"
	Ping               EventType = "ping"
	Pong               EventType = "pong"
)

var knownEvents = map[EventType]struct{}{}

func init() {
	for _, t := range []EventType{
		BatchCreated, BatchUpdated, BatchDeleted, BatchStatusChanged, BatchMortality, BatchWeightLogged,
		ReadyForSlaughter, SlaughterCompleted,
		SectionCreated, SectionUpdated, SectionDeleted, SectionCapacityWarning,
		TaskCreated, TaskAssigned, TaskUpdated, TaskStatusChanged, TaskCommentAdded,
		TaskDeadlineApproaching, TaskCompleted, TaskOverdue, TaskDeleted,
		EmergencyAlert, InventoryAlert, AlertResolved,
		LowInventoryUpdate, InventoryUpdated, InventoryItemAdded, StockMovement, InventoryRestocked, InventoryItemExpiry,
		FeedRecorded, FeedScheduleUpdated, FeedStockLow,
		ProductionReport, ReportGenerated, ReportApproved, MeatProductionLog, CanteenOrderPlaced, CanteenMenuUpdated,
		UserCreated, UserUpdated, UserDeactivated, UserLoggedIn, PositionCreated, PositionUpdated,
		AttendanceCheckIn, AttendanceCheckOut, AttendanceMarked,
		SystemNotification, SystemMaintenance, ConnectionAck, Ping, Pong,
	} {
		knownEvents[t] = struct{}{}
	}
}

// Known reports whether t belongs to the declared enumeration. Unknown
// types are still routed; the router only logs them differently.
func (t EventType) Known() bool {
	_, ok := knownEvents[t]
	return ok
}
