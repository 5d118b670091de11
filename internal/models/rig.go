package models

import "strconv"

// CameraParams are the manual capture parameters pushed to the rig.
type CameraParams struct {
	Gain       float64 `json:"gain"`
	BlackLevel float64 `json:"black_level"`
}

type CaptureMetadata struct {
	Gain       float64 `json:"gain"`
	BlackLevel float64 `json:"black_level"`
	GVMean     float64 `json:"gv_mean"`
	Timestamp  string  `json:"timestamp"`
	RawImageID int     `json:"raw_image_id"`
}

type CaptureResponse struct {
	ImageURL string          `json:"image_url"`
	Metadata CaptureMetadata `json:"metadata"`
}

type DatasetImage struct {
	ID         int    `json:"id"`
	Item       string `json:"item"`
	Split      string `json:"split"`
	DefectType string `json:"defect_type"`
	FileURL    string `json:"file_url"`
	IsMask     bool   `json:"is_mask"`
}

// Label is the one-line listing used by the dataset browser.
func (d DatasetImage) Label() string {
	label := "[" + d.Item + "/" + d.Split + "/" + d.DefectType + "] #" + strconv.Itoa(d.ID)
	if d.IsMask {
		label += " (mask)"
	}
	return label
}

type DatasetFilters struct {
	Items       []string `json:"items"`
	Splits      []string `json:"splits"`
	DefectTypes []string `json:"defect_types"`
}

// DatasetQuery narrows a dataset listing; zero values are omitted.
type DatasetQuery struct {
	Item       string
	Split      string
	DefectType string
	Limit      int
	Offset     int
}

type SaveDatasetRequest struct {
	DatasetImageID    int     `json:"dataset_image_id"`
	Gain              float64 `json:"gain"`
	BlackLevel        float64 `json:"black_level"`
	IsAutoCalibration bool    `json:"is_auto_calibration"`
	Note              string  `json:"note,omitempty"`
}

type SaveDatasetResponse struct {
	SavedImageID int     `json:"saved_image_id"`
	ImageURL     string  `json:"image_url"`
	GVMean       float64 `json:"gv_mean"`
}

// HealthStatus is the body of both health endpoints.
type HealthStatus struct {
	Status string                 `json:"status"`
	DB     string                 `json:"db,omitempty"`
	Camera map[string]interface{} `json:"camera,omitempty"`
}
