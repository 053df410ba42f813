package whichport

// CommonPort is a quick-add preset for a well-known development port.
type CommonPort struct {
	Port  int    `json:"port"`
	Label string `json:"label"`
}

var commonPorts = []CommonPort{
	{Port: 3000, Label: "React Dev"},
	{Port: 5173, Label: "Vite Dev"},
	{Port: 8080, Label: "Common"},
	{Port: 8000, Label: "Python"},
	{Port: 9000, Label: "Custom"},
	{Port: 5432, Label: "PostgreSQL"},
	{Port: 27017, Label: "MongoDB"},
}

// CommonPorts returns the quick-add presets. The returned slice is a copy.
func CommonPorts() []CommonPort {
	cp := make([]CommonPort, len(commonPorts))
	copy(cp, commonPorts)
	return cp
}
