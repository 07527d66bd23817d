package domain

import "hash/fnv"

const DefaultDisplayName = "Listener"

var memberPalette = []string{
	"#e57373", "#64b5f6", "#81c784", "#ffb74d",
	"#ba68c8", "#4dd0e1", "#f06292", "#aed581",
}

// LiveMember is one open connection inside a room. Keyed by connection, not
// identity: two tabs of the same user are two members.
type LiveMember struct {
	ConnectionID string `json:"id"`
	DisplayName  string `json:"name"`
	Color        string `json:"color"`
	Identity     string `json:"userId,omitempty"`
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(connectionID, displayName, color string, id Identity) *LiveMember {
	if displayName == "" {
		displayName = DefaultDisplayName
	}
	if color == "" {
		color = ColorFor(connectionID)
	}
	return &LiveMember{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		Color:        color,
		Identity:     id.String(),
	}
}

// ColorFor picks a stable palette color for a key.
func ColorFor(key string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return memberPalette[int(h.Sum32()%uint32(len(memberPalette)))]
}
