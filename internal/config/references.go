package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// References are the destination's lookup values: header constants and,
// optionally, pinned correlation tokens. They come from the references
// file (YAML, JSON or TOML) and RETRO_-prefixed environment variables,
// e.g. RETRO_HEADER_CURRENCY overrides header.currency.
type References struct {
	Currency               string
	CostCenter             string
	CargoType              string
	CharterType            string
	PurchaseOrderReference string

	// Pinned tokens. Cost keys are lower-cased category names.
	GSTTokens  map[int]string
	CostTokens map[string]string

	// Tags used when minting tokens.
	GSTTag  string
	CostTag string
}

// LoadReferences reads the lookup tables. An empty path uses defaults and
// environment overrides only.
func LoadReferences(path string) (References, error) {
	v := viper.New()
	v.SetEnvPrefix("RETRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("header.charter_type", "tc")
	v.SetDefault("header.purchase_order_reference", "")
	v.SetDefault("token_tags.gst", "22")
	v.SetDefault("token_tags.cost", "1")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return References{}, fmt.Errorf("read references file %s: %w", path, err)
		}
	}

	refs := References{
		Currency:               v.GetString("header.currency"),
		CostCenter:             v.GetString("header.cost_center"),
		CargoType:              v.GetString("header.cargo_type"),
		CharterType:            v.GetString("header.charter_type"),
		PurchaseOrderReference: v.GetString("header.purchase_order_reference"),
		GSTTag:                 v.GetString("token_tags.gst"),
		CostTag:                v.GetString("token_tags.cost"),
		GSTTokens:              map[int]string{},
		CostTokens:             map[string]string{},
	}

	for key, token := range v.GetStringMapString("gst_rates") {
		rate, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return References{}, fmt.Errorf("gst_rates: key %q is not an integer rate", key)
		}
		refs.GSTTokens[rate] = token
	}
	for name, token := range v.GetStringMapString("cost_categories") {
		refs.CostTokens[strings.ToLower(strings.TrimSpace(name))] = token
	}

	return refs, nil
}

func (r References) validate() error {
	if r.Currency == "" {
		return fmt.Errorf("header.currency is required (references file or RETRO_HEADER_CURRENCY)")
	}
	if r.CostCenter == "" {
		return fmt.Errorf("header.cost_center is required (references file or RETRO_HEADER_COST_CENTER)")
	}
	if r.CargoType == "" {
		return fmt.Errorf("header.cargo_type is required (references file or RETRO_HEADER_CARGO_TYPE)")
	}
	return nil
}
