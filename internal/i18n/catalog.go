// Package i18n resolves notification events to localized titles and bodies.
package i18n

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/EngSayh/Fixzit-sub003/internal/domain/entity"
)

//go:embed messages.yaml
var defaultMessages []byte

// ErrUnknownMessage is returned when neither the requested locale nor the
// default locale has a message for an event.
var ErrUnknownMessage = errors.New("no message for event")

// Message is a rendered title and body.
type Message struct {
	Title string
	Body  string
}

type rawMessage struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type compiled struct {
	title *template.Template
	body  *template.Template
}

// Catalog holds parsed message templates. It is immutable after loading and safe
// for concurrent use.
type Catalog struct {
	messages map[entity.Locale]map[entity.EventKind]compiled
}

// Default returns the catalogue embedded in the binary.
func Default() (*Catalog, error) {
	return Load(defaultMessages)
}

// LoadFile reads a catalogue from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(data)
}

// Load parses a YAML catalogue. The default locale must define every event kind.
func Load(data []byte) (*Catalog, error) {
	var raw map[entity.Locale]map[entity.EventKind]rawMessage
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{messages: make(map[entity.Locale]map[entity.EventKind]compiled, len(raw))}
	for locale, events := range raw {
		c.messages[locale] = make(map[entity.EventKind]compiled, len(events))
		for kind, m := range events {
			name := string(locale) + "." + string(kind)
			title, err := parse(name+".title", m.Title)
			if err != nil {
				return nil, err
			}
			body, err := parse(name+".body", m.Body)
			if err != nil {
				return nil, err
			}
			c.messages[locale][kind] = compiled{title: title, body: body}
		}
	}

	for _, kind := range []entity.EventKind{
		entity.EventTicketCreated, entity.EventAssigned, entity.EventApprovalRequested,
		entity.EventApproved, entity.EventClosed,
	} {
		if _, ok := c.messages[entity.DefaultLocale][kind]; !ok {
			return nil, fmt.Errorf("catalog: locale %q is missing %q", entity.DefaultLocale, kind)
		}
	}
	return c, nil
}

func parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", name, err)
	}
	return t, nil
}

// Localize renders the message for kind in locale. Unknown locales, and events
// missing from a locale, fall back to the default locale. Missing params render empty.
func (c *Catalog) Localize(kind entity.EventKind, locale entity.Locale, params map[string]string) (Message, error) {
	m, ok := c.messages[locale.OrDefault()][kind]
	if !ok {
		m, ok = c.messages[entity.DefaultLocale][kind]
	}
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownMessage, kind)
	}

	if params == nil {
		params = map[string]string{}
	}
	title, err := execute(m.title, params)
	if err != nil {
		return Message{}, err
	}
	body, err := execute(m.body, params)
	if err != nil {
		return Message{}, err
	}
	return Message{Title: title, Body: body}, nil
}

func execute(t *template.Template, params map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
