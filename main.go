package main

import "github.com/hkcm91/StickerNestV3-sub013/cmd"

func main() {
	cmd.Execute()
}
