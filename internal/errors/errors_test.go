package errors

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/apiextractor/internal/codemodel"
)

func TestErrorCodeUniqueness(t *testing.T) {
	codes := make(map[ErrorCode]string)

	groups := map[string][]ErrorCode{
		"configuration": {
			ErrMalformedRuleset, ErrRulesetNotFound, ErrInvalidVersion,
			ErrInvalidAddedFunction, ErrDuplicateTypeEntry, ErrInvalidAttribute,
			ErrInvalidDeclarations, ErrInvalidTypeSpelling, ErrInvalidPattern,
			ErrRegistryFrozen,
		},
		"resolution": {
			ErrTypeNotFound, ErrUnresolvableTemplateArgument, ErrUnresolvableArraySize,
			ErrAPIVersionExcluded, ErrNotInTypeSystem, ErrGenerationDisabled,
			ErrRedefinedToNotClass, ErrUnmatchedArgumentType, ErrUnmatchedReturnType,
			ErrUnmatchedOperator, ErrRejectedByRule, ErrUnresolvedBaseClass,
			ErrUnmatchedFieldType,
		},
		"consistency": {
			WarnUnmatchedModification, WarnUnmatchedArgumentModification,
			WarnUnmatchedFieldModification, WarnUnevaluatedEnumValue,
			WarnUnknownRejectedEnumValue, WarnUnmatchedDropEntry,
			WarnDuplicateAddedFunction,
		},
	}
	prefixes := map[string]string{"configuration": "CFG1", "resolution": "RES2", "consistency": "CON3"}

	for group, list := range groups {
		for _, code := range list {
			if prev, exists := codes[code]; exists {
				t.Errorf("Duplicate error code %s (previously used for %s)", code, prev)
			}
			codes[code] = group
			if !strings.HasPrefix(string(code), prefixes[group]) {
				t.Errorf("code %s does not belong to the %s range", code, group)
			}
		}
	}
}

func TestRejectionTypesCoverResolutionCodes(t *testing.T) {
	for code, typ := range rejectionTypes {
		assert.True(t, strings.HasPrefix(string(code), "RES"), code)
		assert.NotEmpty(t, typ)
	}
}

func TestDiagnostic_FormatAndJSON(t *testing.T) {
	loc := codemodel.SourceLocation{File: "url.h", Line: 12, Column: 5}
	d := NewRejection(ErrUnmatchedArgumentType, "NS::Url::setPort", "Unmatched argument type 'Port'", loc).
		WithSuggestion("Register Port")

	text := d.Format()
	assert.Contains(t, text, "Resolution Failure")
	assert.Contains(t, text, "RES207")
	assert.Contains(t, text, "url.h:12")
	assert.Contains(t, text, "NS::Url::setPort: Unmatched argument type 'Port'")
	assert.Contains(t, text, "Register Port")

	out, err := d.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "RES207", decoded["code"])
	assert.Equal(t, "unmatched_argument_type", decoded["type"])
	assert.Equal(t, "warning", decoded["severity"])

	assert.Equal(t, "url.h:12:5: warning: NS::Url::setPort: Unmatched argument type 'Port' [RES207]", FormatCompact(d))
}

func TestDiagnostic_Unwrap(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	d := NewMalformedRuleset("ts.xml", cause)

	assert.True(t, stderrors.Is(d, cause))
	assert.True(t, d.IsFatal())
	assert.Contains(t, d.Error(), "Caused by: unexpected EOF")
}

func TestDiagnosticList(t *testing.T) {
	var list DiagnosticList
	assert.Equal(t, "no errors", list.Error())
	assert.False(t, list.HasErrors())

	list = append(list,
		NewUnmatchedModification("NS::Url", "foo(int)"),
		NewInvalidVersion("ts.xml", "since", "abc"),
		NewUnmatchedDropEntry("Gone"),
	)

	errCount, warnCount, infoCount := list.Count()
	assert.Equal(t, 1, errCount)
	assert.Equal(t, 2, warnCount)
	assert.Equal(t, 0, infoCount)
	assert.True(t, list.HasErrors())
	assert.True(t, list.HasWarnings())

	unmatched := list.ByCode(WarnUnmatchedModification)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "NS::Url::foo(int)", unmatched[0].Item)

	assert.Contains(t, list.Error(), "1 error(s), 2 warning(s)")

	out, err := list.ToJSON()
	require.NoError(t, err)
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Len(t, decoded, 3)
}
