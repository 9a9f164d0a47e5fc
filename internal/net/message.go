package net

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Client message types.
const (
	TypeHello    = "hello"
	TypeAim      = "aim"
	TypeInteract = "interact"
	TypeHint     = "hint"

	// TypeJoin is produced by the server after a successful hello; clients
	// cannot send it because the envelope schema rejects it.
	TypeJoin = "join"
)

// Server message types.
const (
	TypeWelcome  = "welcome"
	TypeResolved = "resolved"
	TypeError    = "error"
)

//go:embed schema/envelope.schema.json
var envelopeSchema []byte

// Message is one decoded client message.
type Message struct {
	Type string
	Raw  []byte
}

// Decode unmarshals the message body into v. Numbers inside untyped fields
// stay json.Number.
func (m *Message) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(m.Raw))
	dec.UseNumber()
	return dec.Decode(v)
}

// Codec validates raw frames against the envelope schema.
type Codec struct {
	schema *jsonschema.Schema
}

func NewCodec() (*Codec, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("envelope.schema.json", bytes.NewReader(envelopeSchema)); err != nil {
		return nil, fmt.Errorf("add envelope schema: %w", err)
	}
	s, err := c.Compile("envelope.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return &Codec{schema: s}, nil
}

// Parse decodes and validates one frame.
func (c *Codec) Parse(raw []byte) (*Message, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	typ, _ := doc.(map[string]any)["type"].(string)
	return &Message{Type: typ, Raw: raw}, nil
}

// HelloMsg authenticates a connection and names its actor.
type HelloMsg struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	UUID  string `json:"uuid,omitempty"`
}

type WelcomeMsg struct {
	Type    string `json:"type"`
	ActorID string `json:"actor_id"`
	Session uint64 `json:"session"`
}

// AimMsg reports an actor's current view ray.
type AimMsg struct {
	Region string     `json:"region"`
	Eye    [3]float64 `json:"eye"`
	Look   [3]float64 `json:"look"`
}

// InteractMsg asks for the location an interaction refers to. Payload and
// Chain are arbitrary JSON; Script names a Lua chain builder that derives the
// chain from the payload instead.
type InteractMsg struct {
	ID      uint64 `json:"id,omitempty"`
	Action  string `json:"action"`
	Payload any    `json:"payload"`
	Chain   any    `json:"chain"`
	Script  string `json:"script,omitempty"`
}

type ResolvedMsg struct {
	Type     string   `json:"type"`
	ID       uint64   `json:"id,omitempty"`
	OK       bool     `json:"ok"`
	Strategy string   `json:"strategy"`
	Region   string   `json:"region,omitempty"`
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Z        int      `json:"z"`
	Path     []string `json:"path,omitempty"`
	CellType string   `json:"cell_type,omitempty"`
	Verdict  string   `json:"verdict,omitempty"`
}

// HintMsg reports a last known interaction location. Region may be omitted.
type HintMsg struct {
	Region string  `json:"region,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
}

type ErrorMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
