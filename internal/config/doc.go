// SPDX-License-Identifier: MIT

// Package config provides configuration management for autoconnectd.
//
// Precedence is ENV > file > defaults. The file is YAML and parsed strictly;
// unknown keys fail the load.
package config
