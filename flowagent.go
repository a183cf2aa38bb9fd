package flowagent

const (
	Name    = "flowagent"
	Version = "0.1.0"
)
