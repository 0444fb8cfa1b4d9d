package kube

import "strings"

// SplitLines 按行拆分命令输出，丢弃空行
func SplitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// SplitColumns 按空白拆分一行输出为列
func SplitColumns(line string) []string {
	return strings.Fields(line)
}

// SplitColumnsSep 按给定分隔符拆分一行输出为列，每列去除首尾空白，丢弃空列
func SplitColumnsSep(line string, sep string) []string {
	var columns []string
	for _, col := range strings.Split(line, sep) {
		col = strings.TrimSpace(col)
		if col != "" {
			columns = append(columns, col)
		}
	}
	return columns
}
