// Copyright 2024 Luigi Borriello
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ui contains the terminal output of the command line commands.
package ui

import (
	"io"
	"os"

	"github.com/fatih/color"
)

// Status lines go to Stderr so that Stdout only carries command output.
var (
	Stderr io.Writer = os.Stderr
	Stdout io.Writer = os.Stdout
)

func status(bg, fg color.Attribute, tag, message string) {
	color.New(bg, color.FgWhite, color.Bold).Fprint(Stderr, " "+tag+" ")
	color.New(fg, color.Bold).Fprintln(Stderr, " "+message)
}

// Error prints a red error line.
func Error(message string) { status(color.BgRed, color.FgRed, "ERROR", message) }

// Warn prints a yellow warning line.
func Warn(message string) { status(color.BgYellow, color.FgYellow, "WARN", message) }

// Info prints a green informational line.
func Info(message string) { status(color.BgGreen, color.FgGreen, "INFO", message) }

// Print writes message to Stdout as is.
func Print(message string) {
	_, _ = io.WriteString(Stdout, message)
}
