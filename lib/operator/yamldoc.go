// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/muster/lib/operation"
)

// DumpYAML renders the brief form of event as YAML for hand editing.
func DumpYAML(event *operation.Event) ([]byte, error) {
	document, err := event.ToJSON(true)
	if err != nil {
		return nil, err
	}
	return jsonToYAML(document)
}

// LoadYAML applies edited YAML from DumpYAML to event. The event is
// unchanged on error.
func LoadYAML(event *operation.Event, text []byte) error {
	document, err := yamlToJSON(text)
	if err != nil {
		return fmt.Errorf("%w: %v", operation.ErrMalformedData, err)
	}
	return event.Apply(document)
}

// jsonToYAML re-encodes a JSON document as block-style YAML, keeping
// object member order.
func jsonToYAML(document []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(document, &root); err != nil {
		return nil, fmt.Errorf("reading event document: %w", err)
	}
	blockStyle(&root)

	var buffer bytes.Buffer
	encoder := yaml.NewEncoder(&buffer)
	encoder.SetIndent(2)
	if err := encoder.Encode(&root); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoding yaml: %w", err)
	}
	return buffer.Bytes(), nil
}

func blockStyle(node *yaml.Node) {
	node.Style = 0
	if node.Kind == yaml.ScalarNode && node.ShortTag() == "!!str" && strings.Contains(node.Value, "\n") {
		node.Style = yaml.LiteralStyle
	}
	for _, child := range node.Content {
		blockStyle(child)
	}
}

// yamlToJSON converts a YAML document to JSON, keeping mapping order.
func yamlToJSON(document []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(document, &root); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if root.Kind == 0 {
		return nil, fmt.Errorf("empty yaml document")
	}
	var buffer bytes.Buffer
	if err := writeJSON(&buffer, &root); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func writeJSON(buffer *bytes.Buffer, node *yaml.Node) error {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			buffer.WriteString("null")
			return nil
		}
		return writeJSON(buffer, node.Content[0])
	case yaml.AliasNode:
		return writeJSON(buffer, node.Alias)
	case yaml.MappingNode:
		buffer.WriteByte('{')
		for index := 0; index+1 < len(node.Content); index += 2 {
			if index > 0 {
				buffer.WriteByte(',')
			}
			key, err := json.Marshal(node.Content[index].Value)
			if err != nil {
				return err
			}
			buffer.Write(key)
			buffer.WriteByte(':')
			if err := writeJSON(buffer, node.Content[index+1]); err != nil {
				return err
			}
		}
		buffer.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buffer.WriteByte('[')
		for index, child := range node.Content {
			if index > 0 {
				buffer.WriteByte(',')
			}
			if err := writeJSON(buffer, child); err != nil {
				return err
			}
		}
		buffer.WriteByte(']')
		return nil
	case yaml.ScalarNode:
		return writeScalar(buffer, node)
	}
	return fmt.Errorf("line %d: unsupported yaml node", node.Line)
}

func writeScalar(buffer *bytes.Buffer, node *yaml.Node) error {
	switch node.ShortTag() {
	case "!!null":
		buffer.WriteString("null")
	case "!!bool":
		var value bool
		if err := node.Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		buffer.WriteString(strconv.FormatBool(value))
	case "!!int":
		var value int64
		if err := node.Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		buffer.WriteString(strconv.FormatInt(value, 10))
	case "!!float":
		var value float64
		if err := node.Decode(&value); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		buffer.Write(encoded)
	default:
		encoded, err := json.Marshal(node.Value)
		if err != nil {
			return err
		}
		buffer.Write(encoded)
	}
	return nil
}
