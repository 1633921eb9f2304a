// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wheel

import (
	"math"
	"time"

	"github.com/zintix-labs/rulewheel/errs"
)

// Physics 輪盤的物理參數。單位：弧度、秒；Epsilon 為毫秒。
type Physics struct {
	BaseAcceleration     float64 `yaml:"base_acceleration"     json:"base_acceleration"`     // 起轉加速度 rad/s²
	AccelerationVariance float64 `yaml:"acceleration_variance" json:"acceleration_variance"` // 起轉加速度抖動 ±
	VelocityDecay        float64 `yaml:"velocity_decay"        json:"velocity_decay"`        // 速度衰減 rad/s²
	AccelerationDecay    float64 `yaml:"acceleration_decay"    json:"acceleration_decay"`    // 加速度衰減 rad/s³
	TickRate             float64 `yaml:"tick_rate"             json:"tick_rate"`             // 目標 tick 頻率 Hz
	Epsilon              float64 `yaml:"epsilon"               json:"epsilon"`               // dt 下限（毫秒），避免時鐘過粗造成 dt=0
}

func DefaultPhysics() Physics {
	return Physics{
		BaseAcceleration:     10.0,
		AccelerationVariance: 3.0,
		VelocityDecay:        1.0,
		AccelerationDecay:    5.0,
		TickRate:             120,
		Epsilon:              0.001,
	}
}

// TickInterval 目標 tick 間隔（120Hz ≈ 8.33ms）。
func (p Physics) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / p.TickRate)
}

// Valid 兩個衰減必須 > 0，否則一次 spin 可能永遠停不下來。
func (p Physics) Valid() error {
	for name, v := range map[string]float64{
		"base_acceleration":     p.BaseAcceleration,
		"acceleration_variance": p.AccelerationVariance,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errs.Warnf("physics: %s must be a finite number >= 0", name)
		}
	}
	for name, v := range map[string]float64{
		"velocity_decay":     p.VelocityDecay,
		"acceleration_decay": p.AccelerationDecay,
		"tick_rate":          p.TickRate,
		"epsilon":            p.Epsilon,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return errs.Warnf("physics: %s must be a finite number > 0", name)
		}
	}
	return nil
}
