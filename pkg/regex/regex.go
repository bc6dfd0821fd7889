package regex

import (
	"time"

	"github.com/dlclark/regexp2"
)

const matchTimeout = 2 * time.Second

type Pattern struct {
	Expression *regexp2.Regexp
}

func Compile(pattern string) (*Pattern, error) {
	expression, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return nil, err
	}
	expression.MatchTimeout = matchTimeout

	return &Pattern{Expression: expression}, nil
}

func Check(s string, pattern *Pattern) (bool, error) {
	return pattern.Expression.MatchString(s)
}

func CheckAny(s string, patterns []*Pattern) (bool, error) {
	for _, pattern := range patterns {
		match, err := Check(s, pattern)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}

	return false, nil
}

func CheckAll(s string, patterns []*Pattern) (bool, error) {
	for _, pattern := range patterns {
		match, err := Check(s, pattern)
		if err != nil {
			return false, err
		}
		if !match {
			return false, nil
		}
	}

	return true, nil
}
