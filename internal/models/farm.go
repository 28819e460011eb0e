package models

// ReadyBatch is a poultry batch that reached slaughter readiness.
type ReadyBatch struct {
	ID            ID      `json:"id"`
	BatchNumber   string  `json:"batchNumber,omitempty"`
	Breed         string  `json:"breed,omitempty"`
	Count         int     `json:"count,omitempty"`
	AgeDays       int     `json:"ageDays,omitempty"`
	AverageWeight float64 `json:"averageWeight,omitempty"`
	SectionName   string  `json:"sectionName,omitempty"`
	ReadySince    *Time   `json:"readySince,omitempty"`
}

// ProductionReportEntry summarizes a slaughter or meat production run.
type ProductionReportEntry struct {
	ID          ID      `json:"id"`
	BatchNumber string  `json:"batchNumber,omitempty"`
	ReportType  string  `json:"reportType,omitempty"`
	BirdsCount  int     `json:"birdsCount,omitempty"`
	TotalWeight float64 `json:"totalWeight,omitempty"`
	MeatYield   float64 `json:"meatYield,omitempty"`
	Status      string  `json:"status,omitempty"`
	CreatedAt   *Time   `json:"createdAt,omitempty"`
}

// InventoryItem is an entry of the low-inventory snapshot feed.
type InventoryItem struct {
	ID           ID      `json:"id"`
	Name         string  `json:"name"`
	Category     string  `json:"category,omitempty"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit,omitempty"`
	MinimumLevel float64 `json:"minimumLevel,omitempty"`
}
