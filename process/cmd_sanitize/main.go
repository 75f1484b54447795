package main

import "cmsops/process/sanitize"

func main() {
	sanitize.Run()
}
