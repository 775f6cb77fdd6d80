package models

import "encoding/json"

// SeriesDescriptor mirrors one entry of the archive's series metadata
// response. Field names follow the NBIA REST API wire format.
type SeriesDescriptor struct {
	SeriesInstanceUID string      `json:"SeriesInstanceUID"`
	SeriesDescription string      `json:"SeriesDescription"`
	Modality          string      `json:"Modality"`
	ImageCount        json.Number `json:"ImageCount"`
	PatientID         string      `json:"PatientID"`
	BodyPartExamined  string      `json:"BodyPartExamined"`
	Collection        string      `json:"Collection"`
}

type CollectionDescriptor struct {
	Collection string `json:"Collection"`
}

type PatientDescriptor struct {
	PatientID   string `json:"PatientID"`
	PatientName string `json:"PatientName"`
	Collection  string `json:"Collection"`
}

// StoredInstance is the storage service's response to an instance upload.
type StoredInstance struct {
	ID     string `json:"ID"`
	Status string `json:"Status"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
}
