package stage

// Health reports whether a stage has the collaborators it needs wired.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

func Healthy(name, detail string) Health {
	return Health{Name: name, Ready: true, Detail: detail}
}

func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
