package tariff

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/langchou/meterbook/internal/models"
)

// ErrUnsupportedFormat 不支持的文件格式
var ErrUnsupportedFormat = errors.New("unsupported tariff file format")

// LoadFile 从 TOML、YAML 或 JSON 文件读取电价方案
func LoadFile(path string) (models.TariffSchedule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.TariffSchedule{}, fmt.Errorf("access tariff file: %w", err)
	}
	if info.IsDir() {
		return models.TariffSchedule{}, fmt.Errorf("%s is a directory, not a file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.TariffSchedule{}, fmt.Errorf("read tariff file: %w", err)
	}
	return Decode(data, filepath.Ext(path))
}

// vatField 用于判断文件中是否填写了 vat_percentage
type vatField struct {
	VatPercentage *float64 `json:"vat_percentage" yaml:"vat_percentage" toml:"vat_percentage"`
}

// Decode 按扩展名解析电价方案，未填写 vat_percentage 时使用 DefaultVatPercentage
func Decode(data []byte, ext string) (models.TariffSchedule, error) {
	var (
		s   models.TariffSchedule
		vat vatField
	)

	format := strings.ToLower(ext)
	for _, v := range []any{&s, &vat} {
		if err := unmarshal(data, format, v); err != nil {
			return models.TariffSchedule{}, err
		}
	}
	if vat.VatPercentage == nil {
		s.VatPercentage = DefaultVatPercentage
	}

	if err := Check(s); err != nil {
		return s, err
	}
	return s, nil
}

func unmarshal(data []byte, format string, v any) error {
	switch format {
	case ".toml":
		if err := toml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse TOML tariff: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse YAML tariff: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse JSON tariff: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return nil
}

// Check 检查方案名称与非负字段
func Check(s models.TariffSchedule) error {
	if strings.TrimSpace(s.TariffName) == "" {
		return errors.New("tariff_name is required")
	}
	for _, b := range s.Blocks() {
		if b.LimitKwh < 0 || b.Rate < 0 {
			return fmt.Errorf("block %d must not be negative", b.Number)
		}
	}
	if s.AdminFee < 0 || s.VatPercentage < 0 {
		return errors.New("admin_fee and vat_percentage must not be negative")
	}
	return nil
}
