package core

import (
	"encoding/json"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// unknownKeys holds JSON keys written by other versions of the document
// so they survive a load and save.
type unknownKeys map[string]json.RawMessage

func (u unknownKeys) clone() unknownKeys {
	if u == nil {
		return nil
	}
	c := make(unknownKeys, len(u))
	for k, v := range u {
		c[k] = slices.Clone(v)
	}
	return c
}

// The *Fields aliases (de)serialize the known fields without recursing
// into the JSON methods of the named types.
type (
	accountFields     Account
	tokenFields       Token
	skinFields        Skin
	profileFields     Profile
	entitlementFields Entitlement
)

var (
	knownAccountKeys     = jsonKeys(reflect.TypeFor[accountFields]())
	knownTokenKeys       = jsonKeys(reflect.TypeFor[tokenFields]())
	knownSkinKeys        = jsonKeys(reflect.TypeFor[skinFields]())
	knownProfileKeys     = jsonKeys(reflect.TypeFor[profileFields]())
	knownEntitlementKeys = jsonKeys(reflect.TypeFor[entitlementFields]())
)

func jsonKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		keys[name] = struct{}{}
	}
	return keys
}

// marshalKeeping encodes known and adds the unknown keys it does not
// already write.
func marshalKeeping(known any, unknown unknownKeys) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil || len(unknown) == 0 {
		return data, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	for k, v := range unknown {
		if _, ok := obj[k]; !ok {
			obj[k] = v
		}
	}
	return json.Marshal(obj)
}

// unmarshalKeeping decodes data into known and returns every key that is
// not in keys.
func unmarshalKeeping(data []byte, known any, keys map[string]struct{}) (unknownKeys, error) {
	if err := json.Unmarshal(data, known); err != nil {
		return nil, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	var unknown unknownKeys
	for k, v := range obj {
		if _, ok := keys[k]; ok {
			continue
		}
		if unknown == nil {
			unknown = make(unknownKeys)
		}
		unknown[k] = v
	}
	return unknown, nil
}

func (a Account) MarshalJSON() ([]byte, error) {
	return marshalKeeping(accountFields(a), a.unknown)
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var fields accountFields
	unknown, err := unmarshalKeeping(data, &fields, knownAccountKeys)
	if err != nil {
		return err
	}
	*a = Account(fields)
	a.unknown = unknown
	return nil
}

func (t Token) MarshalJSON() ([]byte, error) {
	return marshalKeeping(tokenFields(t), t.unknown)
}

func (t *Token) UnmarshalJSON(data []byte) error {
	var fields tokenFields
	unknown, err := unmarshalKeeping(data, &fields, knownTokenKeys)
	if err != nil {
		return err
	}
	*t = Token(fields)
	t.unknown = unknown
	return nil
}

func (s Skin) MarshalJSON() ([]byte, error) {
	return marshalKeeping(skinFields(s), s.unknown)
}

func (s *Skin) UnmarshalJSON(data []byte) error {
	var fields skinFields
	unknown, err := unmarshalKeeping(data, &fields, knownSkinKeys)
	if err != nil {
		return err
	}
	*s = Skin(fields)
	s.unknown = unknown
	return nil
}

func (p Profile) MarshalJSON() ([]byte, error) {
	return marshalKeeping(profileFields(p), p.unknown)
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var fields profileFields
	unknown, err := unmarshalKeeping(data, &fields, knownProfileKeys)
	if err != nil {
		return err
	}
	*p = Profile(fields)
	p.unknown = unknown
	return nil
}

func (e Entitlement) MarshalJSON() ([]byte, error) {
	return marshalKeeping(entitlementFields(e), e.unknown)
}

func (e *Entitlement) UnmarshalJSON(data []byte) error {
	var fields entitlementFields
	unknown, err := unmarshalKeeping(data, &fields, knownEntitlementKeys)
	if err != nil {
		return err
	}
	*e = Entitlement(fields)
	e.unknown = unknown
	return nil
}

// Replace stores n in t. Keys from other versions stay attached to the
// slot.
func (t *Token) Replace(n Token) {
	n.Extra = maps.Clone(n.Extra)
	n.unknown = t.unknown
	*t = n
}
