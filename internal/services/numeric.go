package services

import (
  "math"
  "strconv"
  "strings"

  "github.com/yungbote/liftlog-backend/internal/types"
)

// LbPerKg converts between pounds and kilograms.
const LbPerKg = 2.20462

// CoerceNumber turns a value that may already be numeric or may be a
// user-typed string into a finite float, or nil if uncoercible. String
// handling is deliberately forgiving: everything but digits, '.' and '-'
// is stripped, alternate decimal separators (comma, middle dot, arabic
// decimal separator) are normalized to '.', and extra dots after the
// first become fractional digits ("7.5.2" -> 7.52).
func CoerceNumber(value any) *float64 {
  switch v := value.(type) {
  case nil:
    return nil
  case float64:
    return finiteOrNil(v)
  case float32:
    return finiteOrNil(float64(v))
  case int:
    f := float64(v)
    return &f
  case int64:
    f := float64(v)
    return &f
  case *float64:
    if v == nil {
      return nil
    }
    return finiteOrNil(*v)
  case string:
    return coerceNumberString(v)
  default:
    return nil
  }
}

func coerceNumberString(raw string) *float64 {
  var sb strings.Builder
  for _, r := range raw {
    switch {
    case r >= '0' && r <= '9':
      sb.WriteRune(r)
    case r == '.' || r == ',' || r == '·' || r == '٫':
      sb.WriteByte('.')
    case r == '-':
      sb.WriteByte('-')
    }
  }
  cleaned := sb.String()
  if cleaned == "" {
    return nil
  }

  if first := strings.Index(cleaned, "."); first >= 0 {
    head := cleaned[:first+1]
    tail := strings.ReplaceAll(cleaned[first+1:], ".", "")
    cleaned = head + tail
  }

  f, err := strconv.ParseFloat(cleaned, 64)
  if err != nil {
    return nil
  }
  return finiteOrNil(f)
}

func finiteOrNil(f float64) *float64 {
  if math.IsNaN(f) || math.IsInf(f, 0) {
    return nil
  }
  return &f
}

// CoerceReps coerces a rep count. Values below 1 are treated as absent.
func CoerceReps(value any) *int {
  f := CoerceNumber(value)
  if f == nil {
    return nil
  }
  n := int(math.Round(*f))
  if n < 1 {
    return nil
  }
  return &n
}

func KgToLb(kg float64) float64 {
  return kg * LbPerKg
}

func LbToKg(lb float64) float64 {
  return lb / LbPerKg
}

// ToKg converts a weight in the given unit to kilograms.
func ToKg(weight float64, unit string) float64 {
  if unit == types.WeightUnitLb {
    return LbToKg(weight)
  }
  return weight
}

func Round2(f float64) float64 {
  return math.Round(f*100) / 100
}
