// Package locspec implements code to parse a string into a specific
// location specification.
//
// Location spec examples:
//
// locStr ::= *<address> | <line> | <filename>:<line> | <function>
// * <address> is a hexadecimal number, optionally prefixed by 0x
// * <line> returns a location for a line in the file of the entry function
// * <filename> can be the full path of a file or just a suffix
// * <function> is the name of a function, functions of the main package of
//   a Go program can omit the "main." prefix
package locspec
