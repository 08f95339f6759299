// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"unicode"
)

var builtinTemplates = map[string]string{
	"github_actions": `name: {{quote .Name}}
on:
  push:
    branches: [main]
  pull_request:
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: {{quote .Summary}}
        run: echo "replace with build steps"
`,
	"kubernetes": `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{.Slug}}
  labels:
    app: {{.Slug}}
  annotations:
    description: {{quote .Summary}}
spec:
  replicas: 1
  selector:
    matchLabels:
      app: {{.Slug}}
  template:
    metadata:
      labels:
        app: {{.Slug}}
    spec:
      containers:
        - name: {{.Slug}}
          image: "nginx:stable"
`,
	"docker_compose": `# {{.Summary}}
services:
  {{.Slug}}:
    image: "alpine:3"
    restart: unless-stopped
`,
	"ansible": `- name: {{quote .Summary}}
  hosts: all
  become: true
  tasks: []
`,
	"terraform": `# {{.Summary}}
terraform {
  required_version = ">= 1.5"
}
`,
	"generic_yaml": `name: {{quote .Name}}
description: {{quote .Summary}}
`,
}

// templateData is what the built-in templates can reference.
type templateData struct {
	Name    string
	Slug    string
	Summary string
}

// TemplateGenerator renders built-in skeletons without calling a model.
// It is the fallback generator and the one used in tests.
//
// Thread Safety: Safe for concurrent use (immutable after construction).
type TemplateGenerator struct {
	templates map[string]*template.Template
}

// NewTemplateGenerator parses the built-in templates plus any overrides,
// keyed by schema type.
func NewTemplateGenerator(overrides map[string]string) (*TemplateGenerator, error) {
	sources := make(map[string]string, len(builtinTemplates)+len(overrides))
	for k, v := range builtinTemplates {
		sources[k] = v
	}
	for k, v := range overrides {
		sources[k] = v
	}
	funcs := template.FuncMap{"quote": strconv.Quote}
	g := &TemplateGenerator{templates: make(map[string]*template.Template, len(sources))}
	for name, src := range sources {
		t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		g.templates[name] = t
	}
	return g, nil
}

// Generate implements Generator. Unknown schema types use generic_yaml.
func (g *TemplateGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t, ok := g.templates[req.SchemaType]
	if !ok {
		t = g.templates["generic_yaml"]
	}
	if t == nil {
		return "", fmt.Errorf("%w: no template for %q", ErrNotConfigured, req.SchemaType)
	}

	summary := strings.Join(strings.Fields(req.Text), " ")
	if len(summary) > 120 {
		summary = summary[:120]
	}
	data := templateData{Name: title(req.Text), Slug: slug(req.Text), Summary: summary}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render template %s: %w", t.Name(), err)
	}
	return b.String(), nil
}

func words(text string, n int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) > n {
		fields = fields[:n]
	}
	return fields
}

func slug(text string) string {
	w := words(text, 4)
	if len(w) == 0 {
		return "app"
	}
	return strings.Join(w, "-")
}

func title(text string) string {
	w := words(text, 6)
	if len(w) == 0 {
		return "Generated"
	}
	for i, s := range w {
		r := []rune(s)
		r[0] = unicode.ToUpper(r[0])
		w[i] = string(r)
	}
	return strings.Join(w, " ")
}
