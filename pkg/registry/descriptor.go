package registry

import (
	"fmt"
	"regexp"
)

// commandNameRegex validates command and option names (lowercase
// alphanumeric with hyphens and underscores, max 32 chars)
var commandNameRegex = regexp.MustCompile(`^[-_a-z0-9]{1,32}$`)

// OptionKind identifies the value type of a command option
type OptionKind string

const (
	OptionSubcommand  OptionKind = "subcommand"
	OptionGroup       OptionKind = "group"
	OptionString      OptionKind = "string"
	OptionInteger     OptionKind = "integer"
	OptionBoolean     OptionKind = "boolean"
	OptionUser        OptionKind = "user"
	OptionChannel     OptionKind = "channel"
	OptionRole        OptionKind = "role"
	OptionMentionable OptionKind = "mentionable"
	OptionNumber      OptionKind = "number"
)

// optionKindCodes maps option kinds to the platform's numeric codes
var optionKindCodes = map[OptionKind]int{
	OptionSubcommand:  1,
	OptionGroup:       2,
	OptionString:      3,
	OptionInteger:     4,
	OptionBoolean:     5,
	OptionUser:        6,
	OptionChannel:     7,
	OptionRole:        8,
	OptionMentionable: 9,
	OptionNumber:      10,
}

// Choice is a predefined value the user can pick for an option
type Choice struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// Option describes one command parameter. Subcommands and groups nest
// further options through the Options field.
type Option struct {
	Kind        OptionKind `json:"kind"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Required    bool       `json:"required,omitempty"`
	Choices     []Choice   `json:"choices,omitempty"`
	Options     []Option   `json:"options,omitempty"`
}

// Descriptor describes one command as authored in a definition file
type Descriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Options     []Option `json:"options,omitempty"`
}

// wireDescriptor is the registry API's representation of a command
type wireDescriptor struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Options     []wireOption `json:"options,omitempty"`
}

type wireOption struct {
	Kind        int          `json:"type"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Required    bool         `json:"required,omitempty"`
	Choices     []Choice     `json:"choices,omitempty"`
	Options     []wireOption `json:"options,omitempty"`
}

// Validate checks the descriptor tree before it is sent to the registry
func (d *Descriptor) Validate() error {
	if !commandNameRegex.MatchString(d.Name) {
		return fmt.Errorf("invalid command name: %q", d.Name)
	}
	if d.Description == "" {
		return fmt.Errorf("command %q: description is required", d.Name)
	}
	for i := range d.Options {
		if err := d.Options[i].validate(); err != nil {
			return fmt.Errorf("command %q: %w", d.Name, err)
		}
	}
	return nil
}

func (o *Option) validate() error {
	if _, ok := optionKindCodes[o.Kind]; !ok {
		return fmt.Errorf("option %q: unknown kind %q", o.Name, o.Kind)
	}
	if !commandNameRegex.MatchString(o.Name) {
		return fmt.Errorf("invalid option name: %q", o.Name)
	}
	if o.Description == "" {
		return fmt.Errorf("option %q: description is required", o.Name)
	}
	if len(o.Options) > 0 && o.Kind != OptionSubcommand && o.Kind != OptionGroup {
		return fmt.Errorf("option %q: kind %q cannot nest options", o.Name, o.Kind)
	}
	for i := range o.Options {
		if err := o.Options[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// wire maps the descriptor tree to the registry API's shape. The mapping
// is a pure recursion over the option tree and carries no other state.
func (d *Descriptor) wire() (*wireDescriptor, error) {
	out := &wireDescriptor{
		Name:        d.Name,
		Description: d.Description,
	}
	for i := range d.Options {
		opt, err := d.Options[i].wire()
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", d.Name, err)
		}
		out.Options = append(out.Options, *opt)
	}
	return out, nil
}

func (o *Option) wire() (*wireOption, error) {
	code, ok := optionKindCodes[o.Kind]
	if !ok {
		return nil, fmt.Errorf("option %q: unknown kind %q", o.Name, o.Kind)
	}

	out := &wireOption{
		Kind:        code,
		Name:        o.Name,
		Description: o.Description,
		Required:    o.Required,
		Choices:     o.Choices,
	}
	for i := range o.Options {
		child, err := o.Options[i].wire()
		if err != nil {
			return nil, err
		}
		out.Options = append(out.Options, *child)
	}
	return out, nil
}
