package analyzer

import (
	"context"
	"testing"

	"github.com/kpblcaoo/llmstruct/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for the structural analyzer:
// - TypeScript: classes with fields and methods, functions, arrow functions,
//   namespace imports drive qualified calls, relative imports resolve
// - Rust: structs, traits with signatures, impl methods attach to the type,
//   crate:: uses resolve under src/
// - Java: package, bases, fields, methods and member calls
// - C: functions via declarators, structs with bodies, includes
// - PHP: namespace, classes, methods, static calls through use aliases
// - Ruby: modules nest classes, methods attach, require_relative resolves
// - unknown languages are rejected with ErrUnsupportedLanguage
// - syntax errors surface as ParseError

func analyzeStructural(t *testing.T, lang model.Language, root, relPath string) model.ModuleRecord {
	t.Helper()
	a, err := NewStructuralAnalyzer(lang)
	require.NoError(t, err)
	record, err := a.Analyze(context.Background(), root, relPath)
	require.NoError(t, err)
	assert.Equal(t, lang, record.Language)
	return record
}

func TestStructural_TypeScript(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "src/util.ts", "export function helper(s: string): string { return s; }\n")
	writeSource(t, root, "src/app.ts", `import { helper } from "./util";
import * as path from "path";

/** Greeter says hello. */
export class Greeter {
  name: string;

  greet(): string {
    return helper(this.name);
  }
}

export interface Named {
  label(): string;
}

export function main() {
  path.join("a", "b");
}

export const add = (a: number, b: number): number => a + b;
`)

	record := analyzeStructural(t, model.LanguageTypeScript, root, "src/app.ts")

	assert.Equal(t, []string{"./util", "path"}, record.Dependencies)
	require.Len(t, record.Imports, 2)
	assert.Equal(t, "src/util.ts", record.Imports[0].Target)
	assert.Equal(t, []string{"helper"}, record.Imports[0].Names)
	assert.Equal(t, "path", record.Imports[1].Alias)

	greeter := findClass(t, record, "Greeter")
	assert.Equal(t, "Greeter says hello.", greeter.Doc)
	assert.Equal(t, []string{"name"}, greeter.Fields)
	assert.Equal(t, []string{"greet"}, greeter.Methods)

	named := findClass(t, record, "Named")
	assert.True(t, named.IsInterface)
	assert.Equal(t, []string{"label"}, named.Methods)

	greet := findFunction(t, record, "greet")
	assert.Equal(t, "Greeter", greet.Parent)
	assert.Equal(t, model.EntityMethod, greet.Kind)
	assert.Equal(t, model.CallLocal, callKinds(greet)["helper"])

	mainFn := findFunction(t, record, "main")
	assert.Equal(t, model.CallQualified, callKinds(mainFn)["path.join"])

	add := findFunction(t, record, "add")
	assert.Equal(t, model.EntityFunction, add.Kind)
	assert.Len(t, add.Parameters, 2)
}

func TestStructural_Rust(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "src/util.rs", "pub fn helper(x: i32) -> i32 { x }\n")
	writeSource(t, root, "src/main.rs", `use crate::util::helper;

/// A point.
pub struct Point {
    x: i32,
    y: i32,
}

impl Point {
    pub fn norm(&self) -> i32 {
        helper(self.x) + self.y
    }
}

pub trait Shape {
    fn area(&self) -> f64;
}

fn main() {
    let p = Point { x: 1, y: 2 };
    println!("{}", p.norm());
}
`)

	record := analyzeStructural(t, model.LanguageRust, root, "src/main.rs")

	require.Len(t, record.Imports, 1)
	assert.Equal(t, "crate::util::helper", record.Imports[0].Module)
	assert.Equal(t, "helper", record.Imports[0].Alias)
	assert.Equal(t, "src/util.rs", record.Imports[0].Target)

	point := findClass(t, record, "Point")
	assert.Equal(t, model.EntityStruct, point.Kind)
	assert.Equal(t, []string{"x", "y"}, point.Fields)
	assert.Equal(t, []string{"norm"}, point.Methods)
	assert.Equal(t, "A point.", point.Doc)

	shape := findClass(t, record, "Shape")
	assert.True(t, shape.IsInterface)
	assert.Equal(t, []string{"area"}, shape.Methods)

	norm := findFunction(t, record, "norm")
	assert.Equal(t, "Point", norm.Parent)
	assert.Equal(t, []string{"i32"}, norm.Returns)
	assert.Contains(t, norm.Calls, "helper")

	assert.Contains(t, findFunction(t, record, "main").Calls, "println")
}

func TestStructural_Java(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "Service.java", `package com.example;

import java.util.List;

public class Service extends Base implements Runner {
    private String name;

    public void run() {
        helper.process(name);
        List.of(1);
    }
}
`)

	record := analyzeStructural(t, model.LanguageJava, root, "Service.java")

	assert.Equal(t, "com.example", record.Package)
	assert.Equal(t, []string{"java.util.List"}, record.Dependencies)

	service := findClass(t, record, "Service")
	assert.ElementsMatch(t, []string{"Base", "Runner"}, service.Bases)
	assert.Equal(t, []string{"name"}, service.Fields)
	assert.Equal(t, []string{"run"}, service.Methods)

	kinds := callKinds(findFunction(t, record, "run"))
	assert.Equal(t, model.CallMethod, kinds["helper.process"])
	assert.Equal(t, model.CallQualified, kinds["List.of"])
}

func TestStructural_C(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "util.h", "int twice(int x);\n")
	writeSource(t, root, "main.c", `#include <stdio.h>
#include "util.h"

struct point {
    int x;
    int y;
};

static int add(int a, int b) {
    return a + b;
}

int main(void) {
    printf("%d\n", add(1, twice(2)));
    return 0;
}
`)

	record := analyzeStructural(t, model.LanguageC, root, "main.c")

	require.Len(t, record.Imports, 2)
	assert.Equal(t, "stdio.h", record.Imports[0].Module)
	assert.Empty(t, record.Imports[0].Target)
	assert.Equal(t, "util.h", record.Imports[1].Target)

	assert.Equal(t, []string{"x", "y"}, findClass(t, record, "point").Fields)

	add := findFunction(t, record, "add")
	assert.Equal(t, []string{"int a", "int b"}, add.Parameters)

	assert.ElementsMatch(t, []string{"printf", "add", "twice"}, findFunction(t, record, "main").Calls)
}

func TestStructural_PHP(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "src/Service/UserService.php", `<?php
namespace App\Service;

use App\Models\User;

class UserService extends BaseService {
    public function find($id) {
        return $this->repo->get($id);
    }
}

function helper() {
    return User::query();
}
`)

	record := analyzeStructural(t, model.LanguagePHP, root, "src/Service/UserService.php")

	assert.Equal(t, "App.Service", record.Package)
	require.Len(t, record.Imports, 1)
	assert.Equal(t, "App.Models.User", record.Imports[0].Module)
	assert.Equal(t, "User", record.Imports[0].Alias)

	service := findClass(t, record, "UserService")
	assert.Equal(t, []string{"find"}, service.Methods)

	find := findFunction(t, record, "find")
	assert.Equal(t, "UserService", find.Parent)

	assert.Equal(t, model.CallQualified, callKinds(findFunction(t, record, "helper"))["User.query"])
}

func TestStructural_Ruby(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSource(t, root, "lib/util.rb", "module Util\nend\n")
	writeSource(t, root, "lib/shapes.rb", `require_relative "util"
require "json"

module Shapes
  class Circle < Base
    def area
      Util.compute(radius)
    end
  end
end
`)

	record := analyzeStructural(t, model.LanguageRuby, root, "lib/shapes.rb")

	require.Len(t, record.Imports, 2)
	assert.Equal(t, "lib/util.rb", record.Imports[0].Target)
	assert.Equal(t, "json", record.Imports[1].Module)

	circle := findClass(t, record, "Shapes.Circle")
	assert.Equal(t, []string{"Base"}, circle.Bases)
	assert.Equal(t, []string{"area"}, circle.Methods)
	findClass(t, record, "Shapes")

	area := findFunction(t, record, "area")
	assert.Equal(t, "Shapes.Circle", area.Parent)
	assert.Contains(t, area.Calls, "Util.compute")
	assert.NotContains(t, area.Calls, "require_relative")
}

func TestStructural_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewStructuralAnalyzer(model.LanguageGo)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	root := t.TempDir()
	writeSource(t, root, "bad.ts", "export function (((\n")
	a, err := NewStructuralAnalyzer(model.LanguageTypeScript)
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), root, "bad.ts")
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)

	record, err := WithFallback(a, NewGenericFallbackAnalyzer(model.LanguageTypeScript), nil).
		Analyze(context.Background(), root, "bad.ts")
	require.NoError(t, err)
	assert.True(t, record.Fallback)
}
