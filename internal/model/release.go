package model

// Distribution is the ROM name every release record carries.
const Distribution = "AfterlifeOS"

// ReleaseRecord is one device's latest build as published by the OTA endpoint.
// Built fresh on every fetch and never mutated afterwards.
type ReleaseRecord struct {
	Codename        string // taken from the request, not the response
	DeviceName      string
	Distribution    string
	Version         string
	ReleaseCodename string
	DownloadURL     string
	BuildTimestamp  *int64   // seconds since epoch
	SizeBytes       *float64 // nil unless upstream sent a JSON number
	BuildType       string
	MaintainerName  string
	MaintainerLink  string
	SupportGroup    string
}
