// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package execution

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// requiredKeys lists the top-level mapping keys a response must carry per
// schema type. Types not listed only need to parse.
var requiredKeys = map[string][]string{
	"github_actions": {"on", "jobs"},
	"kubernetes":     {"apiVersion", "kind"},
	"docker_compose": {"services"},
}

// ValidateResponse checks a generated configuration and returns the
// problems found. An empty result means the response is acceptable.
//
// Terraform is HCL rather than YAML, so it only gets a brace balance check.
// Every other schema type must parse as YAML; ansible must be a list of
// plays and the types in requiredKeys must be a mapping with those keys.
func ValidateResponse(schemaType, body string) []string {
	if strings.TrimSpace(body) == "" {
		return []string{"response is empty"}
	}
	if schemaType == "terraform" {
		return validateBraces(body)
	}

	var doc any
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		return []string{fmt.Sprintf("invalid YAML: %v", err)}
	}

	if schemaType == "ansible" {
		if _, ok := doc.([]any); !ok {
			return []string{"ansible playbook must be a list of plays"}
		}
		return nil
	}

	keys, ok := requiredKeys[schemaType]
	if !ok {
		if doc == nil {
			return []string{"response has no content"}
		}
		return nil
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("%s configuration must be a mapping", schemaType)}
	}
	var issues []string
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			issues = append(issues, fmt.Sprintf("missing top-level key %q", k))
		}
	}
	return issues
}

func validateBraces(body string) []string {
	depth := 0
	for i, r := range body {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return []string{fmt.Sprintf("unbalanced '}' at offset %d", i)}
			}
		}
	}
	if depth != 0 {
		return []string{fmt.Sprintf("%d unclosed '{'", depth)}
	}
	return nil
}
