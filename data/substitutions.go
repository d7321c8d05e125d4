package data

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// A substitution value is kept as raw JSON so that it can be written back into the document
// either as a typed literal ("<name>" in quotes) or interpolated into a string (<name>).
type substitutionSet map[string]json.RawMessage

func expandSubstitutions(originalData []byte) ([]SourceInfo, error) {
	var substs struct {
		Constants  substitutionSet   `json:"constants"`
		Parameters []json.RawMessage `json:"parameters"`
	}
	if err := ParseJSONOrYAML(originalData, &substs); err != nil {
		return nil, err
	}
	if len(substs.Constants) == 0 && len(substs.Parameters) == 0 {
		return []SourceInfo{
			{Data: originalData},
		}, nil
	}
	parameterSets, err := makeParameterPermutations(substs.Parameters)
	if err != nil {
		return nil, err
	}
	if len(parameterSets) == 0 {
		return []SourceInfo{
			{Data: replaceVariables(originalData, substs.Constants)},
		}, nil
	}
	ret := make([]SourceInfo, 0, len(parameterSets))
	for _, paramsSet := range parameterSets {
		// constants may refer to parameters and vice versa
		transformed := replaceVariables(originalData, substs.Constants)
		transformed = replaceVariables(transformed, paramsSet)
		transformed = replaceVariables(transformed, substs.Constants)
		ret = append(ret, SourceInfo{Data: transformed, Params: paramsSet.display()})
	}
	return ret, nil
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

// makeParameterPermutations accepts either a list of parameter sets, or a list of lists of
// parameter sets, in which case every combination of one set from each list is produced.
func makeParameterPermutations(paramsData []json.RawMessage) ([]substitutionSet, error) {
	if len(paramsData) == 0 {
		return nil, nil
	}
	allData, _ := json.Marshal(paramsData)
	switch firstByte(paramsData[0]) {
	case '{':
		var list []substitutionSet
		if err := json.Unmarshal(allData, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '[':
	default:
		return nil, errors.New("unable to parse parameters - must be an array of objects or an array of arrays")
	}
	var lists [][]substitutionSet
	if err := json.Unmarshal(allData, &lists); err != nil {
		return nil, err
	}
	for _, l := range lists {
		if len(l) == 0 {
			return nil, errors.New("unable to parse parameters - a parameter list is empty")
		}
	}
	indices := make([]int, len(lists))
	var result []substitutionSet
	for {
		mergedSet := make(substitutionSet)
		for i := 0; i < len(lists); i++ {
			for k, v := range lists[i][indices[i]] {
				mergedSet[k] = v
			}
		}
		result = append(result, mergedSet)
		incrementPos := 0
		for incrementPos < len(lists) {
			indices[incrementPos]++
			if indices[incrementPos] < len(lists[incrementPos]) {
				break
			}
			indices[incrementPos] = 0
			incrementPos++
		}
		if incrementPos == len(lists) {
			return result, nil
		}
	}
}

// interpolated returns the text to use when a value appears inside a larger string: strings
// lose their quotes, anything else is used as its JSON text.
func interpolated(value json.RawMessage) string {
	var s string
	if firstByte(value) == '"' && json.Unmarshal(value, &s) == nil {
		return s
	}
	return string(bytes.TrimSpace(value))
}

func (s substitutionSet) display() map[string]string {
	ret := make(map[string]string, len(s))
	for k, v := range s {
		ret[k] = interpolated(v)
	}
	return ret
}

func replaceVariables(originalData []byte, substs substitutionSet) []byte {
	str := string(originalData)
	str = strings.ReplaceAll(str, `\u003c`, "<")
	str = strings.ReplaceAll(str, `\u003e`, ">")
	for name, value := range substs {
		typedValueStr := string(bytes.TrimSpace(value))
		str = strings.ReplaceAll(str, `"<`+name+`>"`, typedValueStr)
		str = strings.ReplaceAll(str, "<"+name+">", interpolated(value))
	}
	return []byte(str)
}
