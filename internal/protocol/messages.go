package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerID        string            `json:"player_id"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	PlayerID        string      `json:"player_id"`
	WorldParams     WorldParams `json:"world_params"`
	ScenarioDigest  string      `json:"scenario_digest"`
}

type WorldParams struct {
	TickRateHz       int     `json:"tick_rate_hz"`
	MapWidth         int     `json:"map_width"`
	MapHeight        int     `json:"map_height"`
	SpawnX           float64 `json:"spawn_x"`
	SpawnY           float64 `json:"spawn_y"`
	TimeLimitMinutes int     `json:"time_limit_minutes"`
}

// CATALOG (server -> client): the room layout so the client can render
// trigger zones and discovery markers. Task text is delivered per popup,
// not up front.
type CatalogMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Digest          string       `json:"digest"`
	Rooms           []CatalogRoom `json:"rooms"`
}

type CatalogRoom struct {
	Name      string  `json:"name"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Radius    float64 `json:"radius"`
	TaskCount int     `json:"task_count"`
}

// ACT (client -> server). At most one of the action fields is honored per
// message; Move may ride along with any of them.
type ActMsg struct {
	Type            string           `json:"type"`
	ProtocolVersion string           `json:"protocol_version"`
	Move            *MoveIntent      `json:"move,omitempty"`
	Choose          *ChooseAction    `json:"choose,omitempty"`
	Hold            bool             `json:"hold,omitempty"`
	Confirm         bool             `json:"confirm,omitempty"`
	Snapshot        *SnapshotPayload `json:"snapshot,omitempty"`
}

type MoveIntent struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ChooseAction struct {
	Index int `json:"index"`
}

// SnapshotPayload carries the client's rendered final frame, base64 JPEG.
// It is held until session end and relayed with the trajectory.
type SnapshotPayload struct {
	Image string `json:"image"`
}

// STATE (server -> client), one per tick, latest-wins on a slow client.
type StateMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Tick            uint64    `json:"tick"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	Minutes         int       `json:"minutes"`
	Popup           PopupView `json:"popup"`
	Discovered      []string  `json:"discovered,omitempty"`
	Finished        bool      `json:"finished,omitempty"`
}

type PopupView struct {
	Phase       string       `json:"phase"` // "idle", "open", "resolved"
	Room        string       `json:"room,omitempty"`
	Task        string       `json:"task,omitempty"`
	Description string       `json:"description,omitempty"`
	Choices     []ChoiceView `json:"choices,omitempty"`
	Result      string       `json:"result,omitempty"`
}

type ChoiceView struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}
