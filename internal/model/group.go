package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// GroupType is a tagged union over how a group's member service bindings
// relate to each other.
type GroupType interface {
	groupTypeTag() string
}

// RequestPath orders its bindings as a chain: traffic flows from one
// service binding to the next.
type RequestPath struct {
	ServiceBindings []string `json:"serviceBindings"`
}

func (RequestPath) groupTypeTag() string { return "request_path" }

// HubAndSpoke designates its first binding as the hub, with every other
// binding a dependent spoke.
type HubAndSpoke struct {
	ServiceBindings []string `json:"serviceBindings"`
}

func (HubAndSpoke) groupTypeTag() string { return "hub_and_spoke" }

// Group is a named collection of related service bindings (spec.md §6
// "POST /api/groups"), classified the same way a Service is: a Source
// records what evidence and which session produced it.
type Group struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        GroupType `json:"type"`
	Source      Source    `json:"source"`
}

type groupWire struct {
	ID              uuid.UUID `json:"id"`
	TenantID        string    `json:"tenantId"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Type            string    `json:"type"`
	ServiceBindings []string  `json:"serviceBindings,omitempty"`
	Source          Source    `json:"source"`
}

// MarshalJSON flattens the GroupType tagged union onto the wire struct,
// matching the convention used by Definition's RunType.
func (g Group) MarshalJSON() ([]byte, error) {
	w := groupWire{
		ID:          g.ID,
		TenantID:    g.TenantID,
		Name:        g.Name,
		Description: g.Description,
		Source:      g.Source,
	}
	switch t := g.Type.(type) {
	case RequestPath:
		w.Type = t.groupTypeTag()
		w.ServiceBindings = t.ServiceBindings
	case HubAndSpoke:
		w.Type = t.groupTypeTag()
		w.ServiceBindings = t.ServiceBindings
	case nil:
		w.Type = ""
	default:
		return nil, fmt.Errorf("group %s: unknown group type %T", g.ID, t)
	}
	return json.Marshal(w)
}

// UnmarshalJSON reconstructs the GroupType tagged union from the wire struct.
func (g *Group) UnmarshalJSON(data []byte) error {
	var w groupWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	g.ID = w.ID
	g.TenantID = w.TenantID
	g.Name = w.Name
	g.Description = w.Description
	g.Source = w.Source

	switch w.Type {
	case "request_path":
		g.Type = RequestPath{ServiceBindings: w.ServiceBindings}
	case "hub_and_spoke":
		g.Type = HubAndSpoke{ServiceBindings: w.ServiceBindings}
	case "":
		g.Type = nil
	default:
		return fmt.Errorf("group %s: unknown group type %q", g.ID, w.Type)
	}
	return nil
}
