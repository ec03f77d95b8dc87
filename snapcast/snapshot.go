package snapcast

// MARK: NewSnapshot
// Builds an indexed snapshot. The slices are owned by the snapshot afterwards.
func NewSnapshot(clients []Client, streams []Stream) *Snapshot {
	if clients == nil {
		clients = []Client{}
	}
	if streams == nil {
		streams = []Stream{}
	}

	index := make(map[string]int, len(clients))
	for i, client := range clients {
		index[client.ID] = i
	}

	return &Snapshot{Clients: clients, Streams: streams, index: index}
}

// MARK: Client
func (s *Snapshot) Client(id string) (Client, bool) {
	if s == nil {
		return Client{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Client{}, false
	}
	return s.Clients[i], true
}

// MARK: GroupOf
// Returns the group a client belongs to.
func (s *Snapshot) GroupOf(clientID string) (string, bool) {
	client, ok := s.Client(clientID)
	if !ok || client.GroupID == "" {
		return "", false
	}
	return client.GroupID, true
}

// MARK: withClient
func (s *Snapshot) withClient(id string, patch func(*Client)) *Snapshot {
	i, ok := s.index[id]
	if !ok {
		return s
	}

	clients := append([]Client(nil), s.Clients...)
	patch(&clients[i])
	return NewSnapshot(clients, s.Streams)
}

// MARK: withoutClient
func (s *Snapshot) withoutClient(id string) *Snapshot {
	i, ok := s.index[id]
	if !ok {
		return s
	}

	clients := make([]Client, 0, len(s.Clients)-1)
	clients = append(clients, s.Clients[:i]...)
	clients = append(clients, s.Clients[i+1:]...)
	return NewSnapshot(clients, s.Streams)
}

// MARK: withGroupStream
// Points every client of groupID at streamID.
func (s *Snapshot) withGroupStream(groupID, streamID string) *Snapshot {
	clients := append([]Client(nil), s.Clients...)
	changed := false
	for i := range clients {
		if clients[i].GroupID == groupID {
			clients[i].Stream = streamID
			changed = true
		}
	}
	if !changed {
		return s
	}
	return NewSnapshot(clients, s.Streams)
}
