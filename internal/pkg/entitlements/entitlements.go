package entitlements

import (
	"strings"
)

type Plan string

const (
	PlanFree     Plan = "free"
	PlanBasic    Plan = "basic"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

// UnlimitedDaily is the sentinel daily limit meaning no quota applies.
const UnlimitedDaily = -1

// Model keys for the generation backends.
const (
	ModelFluxSchnell  = "flux-schnell"
	ModelQwenImage    = "qwen-image"
	ModelFlux2Pro     = "flux-2-pro"
	ModelFluxProUltra = "flux-1.1-pro-ultra"
	ModelFluxPro      = "flux-1.1-pro"
	ModelIdeogramV3   = "ideogram-v3"
)

// Resolution ceilings in pixels per side.
const (
	DefaultMaxResolution = 1024
	PremiumMaxResolution = 2048
)

// PlanInfo carries every entitlement attached to one subscription tier.
type PlanInfo struct {
	Tag           Plan     `json:"plan"`
	Name          string   `json:"name"`
	Price         int64    `json:"price"`
	DailyLimit    int      `json:"daily_limit"`
	DefaultModel  string   `json:"default_model"`
	Models        []string `json:"models"`
	MaxResolution int      `json:"max_resolution"`
	Watermark     bool     `json:"watermark"`
	CommercialUse bool     `json:"commercial_use"`
}

// catalog is built once and never mutated after init.
var catalog = map[Plan]PlanInfo{
	PlanFree: {
		Tag:           PlanFree,
		Name:          "Free",
		Price:         0,
		DailyLimit:    3,
		DefaultModel:  ModelFluxSchnell,
		Models:        []string{ModelFluxSchnell},
		MaxResolution: DefaultMaxResolution,
		Watermark:     true,
		CommercialUse: false,
	},
	PlanBasic: {
		Tag:           PlanBasic,
		Name:          "Basic",
		Price:         4900,
		DailyLimit:    30,
		DefaultModel:  ModelFluxSchnell,
		Models:        []string{ModelFluxSchnell},
		MaxResolution: DefaultMaxResolution,
		Watermark:     false,
		CommercialUse: true,
	},
	PlanPro: {
		Tag:           PlanPro,
		Name:          "Pro",
		Price:         19900,
		DailyLimit:    100,
		DefaultModel:  ModelQwenImage,
		Models:        []string{ModelQwenImage, ModelFlux2Pro, ModelFluxProUltra},
		MaxResolution: PremiumMaxResolution,
		Watermark:     false,
		CommercialUse: true,
	},
	PlanBusiness: {
		Tag:           PlanBusiness,
		Name:          "Business",
		Price:         99000,
		DailyLimit:    500,
		DefaultModel:  ModelQwenImage,
		Models:        []string{ModelQwenImage, ModelFlux2Pro, ModelFluxProUltra},
		MaxResolution: PremiumMaxResolution,
		Watermark:     false,
		CommercialUse: true,
	},
}

// planOrder fixes the tier ordering for listings and rank comparisons.
var planOrder = []Plan{PlanFree, PlanBasic, PlanPro, PlanBusiness}

// Normalize maps an arbitrary tag onto a known plan, defaulting to free.
func Normalize(tag string) Plan {
	p := Plan(strings.ToLower(strings.TrimSpace(tag)))
	if _, ok := catalog[p]; ok {
		return p
	}
	return PlanFree
}

// Info returns the catalog entry for tag, defaulting to the free tier for
// unknown tags.
func Info(tag string) PlanInfo {
	return catalog[Normalize(tag)]
}

// Known reports whether tag names a catalog plan without normalization.
func Known(tag string) bool {
	_, ok := catalog[Plan(strings.ToLower(strings.TrimSpace(tag)))]
	return ok
}

// Rank orders plans from free (0) upwards
func Rank(tag string) int {
	p := Normalize(tag)
	for i, candidate := range planOrder {
		if candidate == p {
			return i
		}
	}
	return 0
}

// Plans returns all catalog entries in tier order.
func Plans() []PlanInfo {
	out := make([]PlanInfo, 0, len(planOrder))
	for _, p := range planOrder {
		out = append(out, catalog[p])
	}
	return out
}

// AllowedModels returns the model keys the plan may invoke.
func AllowedModels(tag string) []string {
	info := Info(tag)
	out := make([]string, len(info.Models))
	copy(out, info.Models)
	return out
}

// ModelAllowed reports whether the plan may invoke the given model key.
func ModelAllowed(tag, model string) bool {
	for _, m := range Info(tag).Models {
		if m == model {
			return true
		}
	}
	return false
}

// MaxResolution returns the plan's output resolution ceiling in pixels.
func MaxResolution(tag string) int {
	return Info(tag).MaxResolution
}
