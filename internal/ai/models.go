package ai

// extractionResult is the JSON the model is instructed to return.
type extractionResult struct {
	// Valid is false when the image is not the requested document or is
	// unreadable.
	Valid          bool    `json:"valid"`
	Reason         string  `json:"reason,omitempty"`
	HolderName     string  `json:"holder_name,omitempty"`
	DocumentNumber string  `json:"document_number,omitempty"`
	VehicleType    string  `json:"vehicle_type,omitempty"`
	Plate          string  `json:"plate,omitempty"`
	DeliveryRate   float64 `json:"delivery_rate,omitempty"`
}
