package main

// Wire shapes returned by the daemon API.

type jobStatus struct {
	ProcessingID int64   `json:"processing_id"`
	UploadID     int64   `json:"upload_id"`
	Stage        string  `json:"stage"`
	Status       string  `json:"status"`
	Progress     float64 `json:"progress"`
	Message      string  `json:"message"`
	ErrorMessage string  `json:"error_message"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type uploadSummary struct {
	UploadID     int64  `json:"upload_id"`
	Filename     string `json:"filename"`
	FileSize     int64  `json:"file_size"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	TotalRows    int    `json:"total_rows"`
	KeptRows     int    `json:"kept_rows"`
	RemovedRows  int    `json:"removed_rows"`
	DomesticRows int    `json:"domestic_rows"`
	ForeignRows  int    `json:"foreign_rows"`
	HasReport    bool   `json:"has_report"`
	CreatedAt    string `json:"created_at"`
}

type historyPage struct {
	Total   int             `json:"total"`
	Uploads []uploadSummary `json:"uploads"`
}

type uploadAccepted struct {
	UploadID     int64  `json:"upload_id"`
	ProcessingID int64  `json:"processing_id"`
	Message      string `json:"message"`
}

type progressFrame struct {
	Type         string   `json:"type"`
	ProcessingID int64    `json:"processing_id"`
	Stage        string   `json:"stage"`
	Status       string   `json:"status"`
	Progress     *float64 `json:"progress"`
	Message      string   `json:"message"`
	ErrorMessage string   `json:"error_message"`
}
