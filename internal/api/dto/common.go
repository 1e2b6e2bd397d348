package dto

// SuccessResponse is returned by endpoints that have nothing else to report
type SuccessResponse struct {
	Message string `json:"message"`
}
