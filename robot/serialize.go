package robot

import "encoding/json"

// Serialize renders a BrainState to its checkpoint byte form. The format
// is plain JSON; invariant 6 (§3) requires Deserialize(Serialize(s)) == s,
// which holds because every sub-state here is value-typed with no
// unexported fields and no map of non-comparable keys.
func Serialize(s BrainState) ([]byte, error) {
	return json.Marshal(s)
}

// Deserialize restores a BrainState from its checkpoint byte form.
func Deserialize(data []byte) (BrainState, error) {
	var s BrainState
	if err := json.Unmarshal(data, &s); err != nil {
		return BrainState{}, err
	}
	return s, nil
}
