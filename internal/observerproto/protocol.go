package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// LayoutEncoding names the grid layout encoding: base64 of (palette_id, run_len) uvarint pairs
// over the cells in row-major order (y, then x).
const LayoutEncoding = "RLE_UVARINT_B64"

// Client -> Server. First message on the observer WS connection, and can be re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Include per-tick machine events (spawns, sales, discards...) in TICK frames.
	IncludeEvents bool `json:"include_events,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	LevelID         string      `json:"level_id"`
	Tick            uint64      `json:"tick"`
	WorldParams     WorldParams `json:"world_params"`

	// Machine ids by palette index; index 0 is the blank cell.
	MachinePalette []string   `json:"machine_palette"`
	Layout         GridLayout `json:"layout"`
}

type WorldParams struct {
	TickRateHz      int     `json:"tick_rate_hz"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Seed            int64   `json:"seed"`
	ItemMoveSeconds float64 `json:"item_move_seconds"`
}

type GridLayout struct {
	Encoding   string `json:"encoding"`
	Machines   string `json:"machines"`
	Directions string `json:"directions"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	SimSeconds float64  `json:"sim_seconds"`
	Credits    int      `json:"credits"`
	WasteQueue []string `json:"waste_queue,omitempty"`

	// Cells with a machine or holding items.
	Cells  []CellState `json:"cells"`
	Events []EventInfo `json:"events,omitempty"`
}

type CellState struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Machine   string `json:"machine,omitempty"`
	Kind      string `json:"kind"`
	Direction string `json:"direction"`
	State     string `json:"state"`

	// -1 when the machine has nothing to show.
	Progress float64 `json:"progress"`
	Tooltip  string  `json:"tooltip"`

	Items   []ItemState `json:"items,omitempty"`
	Waiting []ItemState `json:"waiting,omitempty"`
}

type ItemState struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	State string `json:"state"`

	// Render position: source + (target - source) * progress.
	From     [2]int  `json:"from"`
	To       [2]int  `json:"to"`
	Progress float64 `json:"progress"`

	StackIndex int `json:"stack_index,omitempty"`
}

type EventInfo struct {
	Type     string `json:"type"`
	ItemID   string `json:"item_id,omitempty"`
	ItemType string `json:"item_type,omitempty"`
	Pos      [2]int `json:"pos"`
	Reason   string `json:"reason,omitempty"`
	Value    int    `json:"value,omitempty"`
}
