package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireTransformFlatCommand(t *testing.T) {
	desc := Descriptor{
		Name:        "greet",
		Description: "Say hello",
		Options: []Option{
			{
				Kind:        OptionString,
				Name:        "who",
				Description: "Who to greet",
				Required:    true,
			},
		},
	}

	wire, err := desc.wire()
	require.NoError(t, err)

	raw, err := json.Marshal(wire)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "greet",
		"description": "Say hello",
		"options": [
			{"type": 3, "name": "who", "description": "Who to greet", "required": true}
		]
	}`, string(raw))
}

func TestWireTransformNestedSubcommands(t *testing.T) {
	desc := Descriptor{
		Name:        "admin",
		Description: "Administration",
		Options: []Option{
			{
				Kind:        OptionGroup,
				Name:        "roles",
				Description: "Role management",
				Options: []Option{
					{
						Kind:        OptionSubcommand,
						Name:        "grant",
						Description: "Grant a role",
						Options: []Option{
							{Kind: OptionUser, Name: "member", Description: "Target member", Required: true},
							{Kind: OptionRole, Name: "role", Description: "Role to grant", Required: true},
						},
					},
				},
			},
		},
	}

	wire, err := desc.wire()
	require.NoError(t, err)

	raw, err := json.Marshal(wire)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "admin",
		"description": "Administration",
		"options": [
			{
				"type": 2, "name": "roles", "description": "Role management",
				"options": [
					{
						"type": 1, "name": "grant", "description": "Grant a role",
						"options": [
							{"type": 6, "name": "member", "description": "Target member", "required": true},
							{"type": 8, "name": "role", "description": "Role to grant", "required": true}
						]
					}
				]
			}
		]
	}`, string(raw))
}

func TestWireTransformChoices(t *testing.T) {
	desc := Descriptor{
		Name:        "mode",
		Description: "Pick a mode",
		Options: []Option{
			{
				Kind:        OptionInteger,
				Name:        "level",
				Description: "Level to use",
				Choices: []Choice{
					{Name: "low", Value: 1},
					{Name: "high", Value: 10},
				},
			},
		},
	}

	wire, err := desc.wire()
	require.NoError(t, err)

	raw, err := json.Marshal(wire)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "mode",
		"description": "Pick a mode",
		"options": [
			{
				"type": 4, "name": "level", "description": "Level to use",
				"choices": [
					{"name": "low", "value": 1},
					{"name": "high", "value": 10}
				]
			}
		]
	}`, string(raw))
}

func TestWireTransformAllOptionKinds(t *testing.T) {
	codes := map[OptionKind]int{
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

	for kind, code := range codes {
		opt := Option{Kind: kind, Name: "x", Description: "x"}
		wire, err := opt.wire()
		require.NoError(t, err)
		assert.Equal(t, code, wire.Kind, "kind %s", kind)
	}
}

func TestWireTransformRejectsUnknownKind(t *testing.T) {
	desc := Descriptor{
		Name:        "bad",
		Description: "Broken",
		Options: []Option{
			{Kind: "attachment", Name: "file", Description: "A file"},
		},
	}

	_, err := desc.wire()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestValidateRejectsBadNames(t *testing.T) {
	cases := []Descriptor{
		{Name: "Has Spaces", Description: "x"},
		{Name: "UPPER", Description: "x"},
		{Name: "", Description: "x"},
	}

	for _, desc := range cases {
		assert.Error(t, desc.Validate(), "name %q", desc.Name)
	}
}

func TestValidateRejectsMissingDescription(t *testing.T) {
	desc := Descriptor{Name: "greet"}
	err := desc.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}

func TestValidateRejectsNestingUnderLeafOption(t *testing.T) {
	desc := Descriptor{
		Name:        "greet",
		Description: "x",
		Options: []Option{
			{
				Kind:        OptionString,
				Name:        "who",
				Description: "x",
				Options: []Option{
					{Kind: OptionString, Name: "inner", Description: "x"},
				},
			},
		},
	}

	err := desc.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot nest options")
}

func TestValidateAcceptsNestedTree(t *testing.T) {
	desc := Descriptor{
		Name:        "admin",
		Description: "Administration",
		Options: []Option{
			{
				Kind:        OptionSubcommand,
				Name:        "kick",
				Description: "Kick a member",
				Options: []Option{
					{Kind: OptionUser, Name: "member", Description: "Target", Required: true},
					{Kind: OptionString, Name: "reason", Description: "Why"},
				},
			},
		},
	}

	assert.NoError(t, desc.Validate())
}
