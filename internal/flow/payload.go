package flow

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxPayload is the transport's limit on callback data, in bytes.
const MaxPayload = 64

// sep separates payload fields.
const sep = ":"

// Callback namespaces.
const (
	NSAddPoke       = "addpoke"
	NSCandy         = "candy"
	NSEvolve        = "evolve"
	NSRelease       = "release"
	NSSafari        = "safari"
	NSSort          = "sort"
	NSDisplay       = "display"
	NSStats         = "stats"
	NSWild          = "wild"
	NSDuel          = "duel"
	NSGym           = "gym"
	NSTrade         = "trade"
	NSXPin          = "xpin"
	NSSelectPokemon = "selectpokemon"
	NSSetMoves      = "set_moves"
	NSToggleMove    = "toggle_move"
	NSSaveMoves     = "save_moves"
	NSStart         = "start"
	NSTravel        = "travel"
	NSSuggest       = "suggest"
	NSTeam          = "team"
)

// ErrMalformedPayload is returned for callback data that does not decode.
var ErrMalformedPayload = errors.New("malformed callback payload")

// Payload is a decoded button callback. Owner is the user allowed to press it.
type Payload struct {
	Namespace string
	Verb      string
	Args      []string
	Owner     int64
}

// New builds a payload for owner.
func New(owner int64, namespace, verb string, args ...string) Payload {
	return Payload{Namespace: namespace, Verb: verb, Args: args, Owner: owner}
}

// Encode renders p as namespace:verb:args...:owner.
//
// Postcondition: Decode(Encode(p)) == p for every payload Encode accepts.
func (p Payload) Encode() (string, error) {
	if p.Namespace == "" || p.Verb == "" {
		return "", fmt.Errorf("%w: namespace and verb are required", ErrMalformedPayload)
	}
	parts := make([]string, 0, len(p.Args)+3)
	parts = append(parts, p.Namespace, p.Verb)
	parts = append(parts, p.Args...)
	for _, s := range parts {
		if strings.Contains(s, sep) {
			return "", fmt.Errorf("%w: field %q contains %q", ErrMalformedPayload, s, sep)
		}
	}
	parts = append(parts, strconv.FormatInt(p.Owner, 10))
	out := strings.Join(parts, sep)
	if len(out) > MaxPayload {
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrMalformedPayload, len(out), MaxPayload)
	}
	return out, nil
}

// MustEncode is Encode for payloads built from trusted parts.
func (p Payload) MustEncode() string {
	s, err := p.Encode()
	if err != nil {
		panic(err)
	}
	return s
}

// Decode parses callback data.
func Decode(data string) (Payload, error) {
	if len(data) > MaxPayload {
		return Payload{}, fmt.Errorf("%w: too long", ErrMalformedPayload)
	}
	parts := strings.Split(data, sep)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return Payload{}, fmt.Errorf("%w: %q", ErrMalformedPayload, data)
	}
	owner, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: owner %q", ErrMalformedPayload, parts[len(parts)-1])
	}
	p := Payload{Namespace: parts[0], Verb: parts[1], Owner: owner}
	if n := len(parts) - 3; n > 0 {
		p.Args = append([]string(nil), parts[2:len(parts)-1]...)
	}
	return p, nil
}

// Authorize checks that userID pressed their own button.
func (p Payload) Authorize(userID int64) error {
	if p.Owner != userID {
		return ErrNotAuthorized
	}
	return nil
}

// Arg returns argument i or "".
func (p Payload) Arg(i int) string {
	if i < 0 || i >= len(p.Args) {
		return ""
	}
	return p.Args[i]
}

// IntArg parses argument i as an integer.
func (p Payload) IntArg(i int) (int, error) {
	v, err := strconv.Atoi(p.Arg(i))
	if err != nil {
		return 0, fmt.Errorf("%w: argument %d", ErrMalformedPayload, i)
	}
	return v, nil
}

// Int64Arg parses argument i as a 64-bit integer.
func (p Payload) Int64Arg(i int) (int64, error) {
	v, err := strconv.ParseInt(p.Arg(i), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: argument %d", ErrMalformedPayload, i)
	}
	return v, nil
}
