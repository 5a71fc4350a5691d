package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/coursedesk/coursedesk/internal/domain/auth"
)

// CodeOK is the envelope code for success.
const CodeOK = 200

// Envelope is the course backend's response wrapper.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	User    json.RawMessage `json:"user,omitempty"`
}

// Default JMESPath expressions locating the identity and token in a login envelope.
const (
	DefaultIdentityExpr = "user || data"
	DefaultTokenExpr    = "user.token || data.token || token"
)

// Extractor pulls the identity and token out of a login response.
type Extractor struct {
	identity jmespath.JMESPath
	token    jmespath.JMESPath
}

// NewExtractor compiles the expressions; empty strings select the defaults.
func NewExtractor(identityExpr, tokenExpr string) (*Extractor, error) {
	if strings.TrimSpace(identityExpr) == "" {
		identityExpr = DefaultIdentityExpr
	}
	if strings.TrimSpace(tokenExpr) == "" {
		tokenExpr = DefaultTokenExpr
	}
	idq, err := jmespath.Compile(identityExpr)
	if err != nil {
		return nil, fmt.Errorf("compile identity expression: %w", err)
	}
	tq, err := jmespath.Compile(tokenExpr)
	if err != nil {
		return nil, fmt.Errorf("compile token expression: %w", err)
	}
	return &Extractor{identity: idq, token: tq}, nil
}

// ErrNoIdentity is returned when a login response carries no identity or token.
var ErrNoIdentity = errors.New("login response carries no identity")

// Extract decodes raw (a full envelope body) into a token and identity.
// The role is returned verbatim; mapping happens in the caller.
func (x *Extractor) Extract(raw []byte) (string, domainauth.Identity, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", domainauth.Identity{}, fmt.Errorf("decode login response: %w", err)
	}

	idv, err := x.identity.Search(doc)
	if err != nil {
		return "", domainauth.Identity{}, fmt.Errorf("search identity: %w", err)
	}
	obj, ok := idv.(map[string]any)
	if !ok {
		return "", domainauth.Identity{}, ErrNoIdentity
	}

	tv, err := x.token.Search(doc)
	if err != nil {
		return "", domainauth.Identity{}, fmt.Errorf("search token: %w", err)
	}
	token, _ := tv.(string)
	if strings.TrimSpace(token) == "" {
		return "", domainauth.Identity{}, ErrNoIdentity
	}

	identity, err := decodeIdentity(obj)
	if err != nil {
		return "", domainauth.Identity{}, err
	}
	return token, identity, nil
}

// decodeIdentity accepts numeric ids as well as strings.
func decodeIdentity(obj map[string]any) (domainauth.Identity, error) {
	for _, k := range []string{"userId", "studentId", "teacherId"} {
		if f, ok := obj[k].(float64); ok {
			obj[k] = fmt.Sprintf("%.0f", f)
		}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("encode identity: %w", err)
	}
	var id domainauth.Identity
	if err := json.Unmarshal(b, &id); err != nil {
		return domainauth.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	return id, nil
}
