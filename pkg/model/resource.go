package model

type ResourceKind string

const (
	ResourceRoom    ResourceKind = "room"
	ResourceAdvisor ResourceKind = "advisor"
)

// Room is a bookable physical space. Rooms without a ContactAddress are
// tracked locally only and never queried on the remote calendar.
type Room struct {
	ID             string `json:"id" bson:"_id"`
	Name           string `json:"name" bson:"name"`
	Site           string `json:"site" bson:"site"`
	ContactAddress string `json:"contact_address,omitempty" bson:"contact_address,omitempty"`
	Position       int    `json:"-" bson:"position"`
}

func (r Room) HasCalendar() bool {
	return r.ContactAddress != ""
}

// Advisor holds the delegated calendar credential when the advisor has
// completed authorization.
type Advisor struct {
	ID         string      `json:"id" bson:"_id"`
	Name       string      `json:"name" bson:"name"`
	Email      string      `json:"email,omitempty" bson:"email,omitempty"`
	Credential *Credential `json:"-" bson:"credential,omitempty"`
}

func (a Advisor) HasCredential() bool {
	return a.Credential != nil && (a.Credential.AccessToken != "" || a.Credential.RefreshToken != "")
}

// Group lists advisors in roster order. The order is the round-robin
// iteration order.
type Group struct {
	ID         string   `json:"id" bson:"_id"`
	Name       string   `json:"name" bson:"name"`
	AdvisorIDs []string `json:"advisor_ids" bson:"advisor_ids"`
}

// ResourceScope narrows an overlap query to a single advisor or room.
type ResourceScope struct {
	Kind ResourceKind
	ID   string
}

func AdvisorScope(id string) ResourceScope {
	return ResourceScope{Kind: ResourceAdvisor, ID: id}
}

func RoomScope(id string) ResourceScope {
	return ResourceScope{Kind: ResourceRoom, ID: id}
}
