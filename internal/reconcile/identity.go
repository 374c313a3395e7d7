package reconcile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// ==================== 身份与键派生 ====================

// 命名空间固定，修改会导致全量 variant_id 变化
var (
	variantNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("retail-recrawl/variant"))
	mpnNamespace     = uuid.NewSHA1(uuid.NameSpaceURL, []byte("retail-recrawl/mpn"))
)

// ErrKeyDerivation 所有 KeyDerivationError 均满足 errors.Is(err, ErrKeyDerivation)
var ErrKeyDerivation = errors.New("key derivation failed")

// KeyDerivationError 必需的身份字段缺失
type KeyDerivationError struct {
	ParentProductID string
	Field           string
}

func (e *KeyDerivationError) Error() string {
	if e.ParentProductID == "" {
		return fmt.Sprintf("key derivation: empty %s", e.Field)
	}
	return fmt.Sprintf("key derivation: product %q has empty %s", e.ParentProductID, e.Field)
}

func (e *KeyDerivationError) Is(target error) bool {
	return target == ErrKeyDerivation
}

// DeriveVariantKey 由 (parent_product_id, 颜色, 尺码) 派生稳定的 variant_id
// 纯函数：相同输入跨进程得到相同输出，任一分量为空直接报错
func DeriveVariantKey(parentProductID, color, size string) (string, error) {
	parts, err := canonicalParts(parentProductID,
		field{"parent_product_id", parentProductID},
		field{"color", color},
		field{"size", size},
	)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(variantNamespace, encodeParts(parts)).String(), nil
}

// DeriveMPN 由 (parent_product_id, 颜色名) 派生 MPN，与尺码无关
func DeriveMPN(parentProductID, colorName string) (string, error) {
	parts, err := canonicalParts(parentProductID,
		field{"parent_product_id", parentProductID},
		field{"color_name", colorName},
	)
	if err != nil {
		return "", err
	}
	id := uuid.NewSHA1(mpnNamespace, encodeParts(parts))
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")), nil
}

type field struct {
	name  string
	value string
}

// canonicalParts NFC 归一化并去除首尾空白
func canonicalParts(parentProductID string, fields ...field) ([]string, error) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(norm.NFC.String(f.value))
		if v == "" {
			return nil, &KeyDerivationError{
				ParentProductID: strings.TrimSpace(parentProductID),
				Field:           f.name,
			}
		}
		parts = append(parts, v)
	}
	return parts, nil
}

// encodeParts 长度前缀编码，("a|b","c") 与 ("a","b|c") 不会碰撞
func encodeParts(parts []string) []byte {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return []byte(b.String())
}
