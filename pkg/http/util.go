package http

import xutil "github.com/sjfremen/fred/pkg/util"

// ParseList splits a comma separated query value.
func ParseList(s string) []string { return xutil.SplitList(s) }
