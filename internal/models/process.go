package models

// Process is one backend-tracked automated checkout run, identified by an
// opaque id, advancing through named stages.
type Process struct {
	ProcessID     string       `json:"process_id"`
	Status        string       `json:"status"`
	Stage         string       `json:"stage"`
	ProductURL    string       `json:"product_url,omitempty"`
	ProductInfo   *ProductInfo `json:"product_info,omitempty"`
	Timestamp     string       `json:"timestamp,omitempty"`
	SessionName   string       `json:"session_name,omitempty"`
	Message       string       `json:"message,omitempty"`
	Addresses     []Address    `json:"addresses,omitempty"`
	ScreenshotURL string       `json:"screenshot_url,omitempty"`
	Data          *ProcessData `json:"data,omitempty"`
}

// ProductInfo describes the product the process is buying.
type ProductInfo struct {
	Name     string            `json:"name"`
	Price    string            `json:"price"`
	ImageURL string            `json:"image_url,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// Address is a saved delivery address as stored by the backend.
type Address struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Pincode    string `json:"pincode"`
	Phone      string `json:"phone"`
	IsSelected bool   `json:"isSelected,omitempty"`
}

// AddressCandidate is one selectable delivery address offered during the
// SELECTING_ADDRESS stage. Index is the backend's 0-based position.
type AddressCandidate struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Text  string `json:"text"`
}

// ProcessData is the structured payload attached to a process by some stages.
// Optional scalar fields use pointers so an absent field can be told apart
// from a zero value during merges.
type ProcessData struct {
	ProductURL             string             `json:"product_url,omitempty"`
	AvailableAddresses     []AddressCandidate `json:"available_addresses,omitempty"`
	AddressIndex           *int               `json:"address_index,omitempty"`
	TotalAmount            string             `json:"total_amount,omitempty"`
	ExpiryInputType        string             `json:"expiry_input_type,omitempty"`
	PaymentDetailsProvided *bool              `json:"payment_details_provided,omitempty"`
	IsNewExpiryFormat      *bool              `json:"is_new_expiry_format,omitempty"`
}

// Merge folds a freshly fetched process into p field by field. New non-empty
// fields win; fields absent from the update preserve the prior value, so
// previously known state survives a partial response.
func (p *Process) Merge(update *Process) {
	if update == nil {
		return
	}
	if update.ProcessID != "" {
		p.ProcessID = update.ProcessID
	}
	if update.Status != "" {
		p.Status = update.Status
	}
	if update.Stage != "" {
		p.Stage = update.Stage
	}
	if update.ProductURL != "" {
		p.ProductURL = update.ProductURL
	}
	if update.ProductInfo != nil {
		p.ProductInfo = update.ProductInfo
	}
	if update.Timestamp != "" {
		p.Timestamp = update.Timestamp
	}
	if update.SessionName != "" {
		p.SessionName = update.SessionName
	}
	if update.Message != "" {
		p.Message = update.Message
	}
	if update.Addresses != nil {
		p.Addresses = update.Addresses
	}
	if update.ScreenshotURL != "" {
		p.ScreenshotURL = update.ScreenshotURL
	}
	if update.Data != nil {
		if p.Data == nil {
			p.Data = &ProcessData{}
		}
		p.Data.merge(update.Data)
	}
}

func (d *ProcessData) merge(update *ProcessData) {
	if update.ProductURL != "" {
		d.ProductURL = update.ProductURL
	}
	if update.AvailableAddresses != nil {
		d.AvailableAddresses = update.AvailableAddresses
	}
	if update.AddressIndex != nil {
		d.AddressIndex = update.AddressIndex
	}
	if update.TotalAmount != "" {
		d.TotalAmount = update.TotalAmount
	}
	if update.ExpiryInputType != "" {
		d.ExpiryInputType = update.ExpiryInputType
	}
	if update.PaymentDetailsProvided != nil {
		d.PaymentDetailsProvided = update.PaymentDetailsProvided
	}
	if update.IsNewExpiryFormat != nil {
		d.IsNewExpiryFormat = update.IsNewExpiryFormat
	}
}
