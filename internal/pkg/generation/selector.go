package generation

// Selector picks the generation backend for a request: the hosted inference
// API when a token is configured, the local node-graph engine otherwise.
type Selector struct {
	replicate *ReplicateClient
	comfy     *ComfyUIClient
}

func NewSelector() *Selector {
	return &Selector{
		replicate: NewReplicateClient(),
		comfy:     NewComfyUIClient(),
	}
}

// Pick returns the backend to use for the next generation.
func (s *Selector) Pick() Backend {
	if s.replicate.Available() {
		return s.replicate
	}
	return s.comfy
}

// Status reports the reachability of both backends for health checks.
func (s *Selector) Status() map[string]bool {
	return map[string]bool{
		s.replicate.Name(): s.replicate.Available(),
		s.comfy.Name():     s.comfy.Available(),
	}
}
