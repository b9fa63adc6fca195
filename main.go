/*
Copyright © 2026 David Ying davidmying@gmail.com
*/
package main

import "github.com/davidmying/wingman/cmd"

func main() {
	cmd.Execute()
}
