// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/imdario/mergo"
)

type wrapper struct {
	Config RawConfig `json:"omni"`
}

const EnvPrefix = "OMNI"

// GetConfigFromENV reads config from Env variables, validates it and parses
// it into config suitable for application. Values present in the environment
// override the ones loaded from base, missing ones fall back to it.
//
// Properties are expected to be defined as separate Env variables where the
// variable name reflects the property's position in the structure, prefixed
// with OMNI. For example Config.SettlementConfig.Fee.SrcWormholeChainId
// translates to OMNI_SETTLEMENT_FEE_SRCWORMHOLECHAINID.
func GetConfigFromENV(base *RawConfig) (*Config, error) {
	rawConfig, err := loadFromEnv()
	if err != nil {
		return nil, err
	}

	if base != nil {
		if err := mergo.Merge(&rawConfig, *base); err != nil {
			return nil, err
		}
	}

	return processRawConfig(rawConfig)
}

func loadFromEnv() (RawConfig, error) {
	jsonConfig, err := loadENVToJsonStructure()
	if err != nil {
		return RawConfig{}, err
	}
	c := &wrapper{}
	err = json.Unmarshal(jsonConfig, c)
	if err != nil {
		return RawConfig{}, err
	}
	return c.Config, nil
}

func loadENVToJsonStructure() ([]byte, error) {
	structure := map[string]interface{}{}
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, EnvPrefix+"_") {
			pair := strings.SplitN(e, "=", 2)
			indexes := strings.Split(strings.ToLower(pair[0]), "_")
			mountMap(structure, indexes, pair[1])
		}
	}
	return json.MarshalIndent(structure, "", "    ")
}

func mountMap(m map[string]interface{}, i []string, v interface{}) {
	if len(i) > 1 {
		if _, ok := m[i[0]]; !ok {
			m[i[0]] = map[string]interface{}{}
		}
		asMap, ok := m[i[0]].(map[string]interface{})
		if !ok {
			return
		}
		mountMap(asMap, i[1:], v)
		v = asMap
	}
	m[i[0]] = v
}
