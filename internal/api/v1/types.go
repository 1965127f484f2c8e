package apiv1

// Pong is the ping response body.
type Pong struct {
	Ping string `json:"ping"`
}
