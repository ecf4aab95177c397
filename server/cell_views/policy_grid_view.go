package cell_views

import (
	"fmt"
	"html/template"

	"gridworld/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// cellDim is the cell height/width in pixels.
const cellDim = 80

// PolicyGrid shows each cell's category and best action, and tracks the agent.
type PolicyGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewPolicyGrid(
	done <-chan struct{},
	boards <-chan Board,
) (pg *PolicyGrid) {
	pg = &PolicyGrid{id: "policygrid"}
	pg.updates = channerics.Convert(done, boards, pg.onUpdate)
	return
}

func (pg *PolicyGrid) Updates() <-chan []fastview.EleUpdate {
	return pg.updates
}

// onUpdate moves the agent marker and the caption. Arrows and fills are static.
func (pg *PolicyGrid) onUpdate(board Board) (ops []fastview.EleUpdate) {
	for _, row := range board.Cells {
		for _, cell := range row {
			opacity := "0"
			if cell.Agent {
				opacity = "1"
			}
			ops = append(ops, fastview.EleUpdate{
				EleId: fmt.Sprintf("%d-%d-agent", cell.X, cell.Y),
				Ops: []fastview.Op{
					{Key: "fill-opacity", Value: opacity},
				},
			})
		}
	}
	ops = append(ops, fastview.EleUpdate{
		EleId: pg.id + "-caption",
		Ops: []fastview.Op{
			{Key: fastview.TextContent, Value: board.Caption},
		},
	})
	return
}

// Parse defines the svg grid template. It relies on the parent's add/mult/div funcs.
func (pg *PolicyGrid) Parse(
	t *template.Template,
) (name string, err error) {
	name = pg.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div id="` + pg.id + `-container">
			{{ $y_cells := len .Cells }}
			{{ $x_cells := len (index .Cells 0) }}
			{{ $cell_width := ` + fmt.Sprintf("%d", cellDim) + ` }}
			{{ $cell_height := $cell_width }}
			{{ $width := mult $cell_width $x_cells }}
			{{ $height := mult $cell_height $y_cells }}
			{{ $half_height := div $cell_height 2 }}
			{{ $half_width := div $cell_width 2 }}
			<p id="` + pg.id + `-caption">{{ .Caption }}</p>
			<svg id="` + pg.id + `"
				width="{{ add $width 1 }}px"
				height="{{ add $height 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<g>
						<rect id="{{$cell.X}}-{{$cell.Y}}-cell"
							x="{{ mult $cell.X $cell_width }}"
							y="{{ mult $cell.Y $cell_height }}"
							width="{{ $cell_width }}"
							height="{{ $cell_height }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1">
							<title>state {{ $cell.State }} ({{ $cell.Kind }}, reward {{ $cell.Reward }})</title>
						</rect>
						<circle id="{{$cell.X}}-{{$cell.Y}}-agent"
							cx="{{ add (mult $cell.X $cell_width) $half_width }}"
							cy="{{ add (mult $cell.Y $cell_height) $half_height }}"
							r="{{ div $half_width 2 }}"
							fill="steelblue"
							fill-opacity="{{ if $cell.Agent }}1{{ else }}0{{ end }}"/>
						<g transform="translate({{ add (mult $cell.X $cell_width) $half_width }}, {{ add (mult $cell.Y $cell_height) $half_height }})">
							<text id="{{$cell.X}}-{{$cell.Y}}-policy-arrow"
							stroke="black" stroke-width="1"
							dominant-baseline="central" text-anchor="middle"
							transform="rotate({{ $cell.ArrowRotation }})"
							>{{ $cell.Arrow }}</text>
						</g>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
