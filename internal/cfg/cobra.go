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

// Package cfg contains configuration helpers for dome-quotes.
package cfg

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AddPersistentFlag defines a flag on cmd that is inherited by its subcommands and binds it
// to configKey. The type of def picks the flag type.
func AddPersistentFlag(cmd *cobra.Command, configKey, flag, usage string, def any) {
	mustBind(cmd.PersistentFlags(), configKey, flag, usage, def)
}

// AddFlag is AddPersistentFlag for a flag that only cmd accepts.
func AddFlag(cmd *cobra.Command, configKey, flag, usage string, def any) {
	mustBind(cmd.Flags(), configKey, flag, usage, def)
}

// Flag definitions run from init functions, a failure there is a programming error.
func mustBind(fs *pflag.FlagSet, configKey, flag, usage string, def any) {
	if err := defineFlag(fs, flag, usage, def); err != nil {
		panic(err.Error())
	}
	if err := viper.BindPFlag(configKey, fs.Lookup(flag)); err != nil {
		panic(err.Error())
	}
	viper.SetDefault(configKey, def)
}

func defineFlag(fs *pflag.FlagSet, flag, usage string, def any) error {
	if fs.Lookup(flag) != nil {
		return fmt.Errorf("flag %q defined twice", flag)
	}
	switch v := def.(type) {
	case bool:
		fs.Bool(flag, v, usage)
	case int:
		fs.Int(flag, v, usage)
	case int64:
		fs.Int64(flag, v, usage)
	case string:
		fs.String(flag, v, usage)
	case []string:
		fs.StringSlice(flag, v, usage)
	case time.Duration:
		fs.Duration(flag, v, usage)
	case map[string]string:
		fs.StringToString(flag, v, usage)
	default:
		return fmt.Errorf("flag %q: unsupported default of type %T", flag, def)
	}
	return nil
}
