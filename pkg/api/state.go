package api

// State is a point-in-time copy of a runner's state.
type State struct {
	RunnerID       string
	Flow           string
	CurrentStep    string
	LastRenderStep string
	Busy           bool
	Domain         Data
	Internal       Data
	ChannelKeys    []string
	Version        uint64
}
