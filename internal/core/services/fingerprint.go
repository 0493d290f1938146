package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Fingerprint deriva o hash determinístico usado na supressão de duplicatas.
// Duas requisições semanticamente idênticas (mesma identidade, mesma rota e
// payload equivalente após normalização) produzem o mesmo fingerprint.
func Fingerprint(identity, route string, payload []byte) string {
	sum := sha256.Sum256([]byte(identity + ":" + route + ":" + NormalizePayload(payload)))
	return hex.EncodeToString(sum[:])
}

// NormalizePayload reduz o payload a uma forma canônica antes do hash.
//
// Regras (decididas aqui e estáveis — mudá-las invalida fingerprints em voo):
//   - espaços nas bordas são descartados;
//   - payload JSON é decodificado e re-serializado, o que ordena chaves de
//     objetos e elimina diferenças de formatação; folhas string são aparadas;
//   - payload não-JSON tem sequências de espaço colapsadas em um único espaço;
//   - caixa é preservada: "Apple" e "apple" são consultas distintas.
func NormalizePayload(payload []byte) string {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return ""
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		if canonical, err := json.Marshal(trimStringLeaves(decoded)); err == nil {
			return string(canonical)
		}
	}

	return strings.Join(strings.Fields(trimmed), " ")
}

func trimStringLeaves(v any) any {
	switch value := v.(type) {
	case map[string]any:
		for k, child := range value {
			value[k] = trimStringLeaves(child)
		}
		return value
	case []any:
		for i, child := range value {
			value[i] = trimStringLeaves(child)
		}
		return value
	case string:
		return strings.TrimSpace(value)
	default:
		return v
	}
}
