package main

import "github.com/voc0der/linux-proton-ge-updater/cmd/ge-proton-updater/cmd"

func main() {
	cmd.Execute()
}
