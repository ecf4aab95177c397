package cell_views

import (
	"fmt"
	"html/template"

	"gridworld/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// VisitHeatmap shades each cell by how often the replayed agent has left it.
type VisitHeatmap struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewVisitHeatmap(
	done <-chan struct{},
	boards <-chan Board,
) (vh *VisitHeatmap) {
	vh = &VisitHeatmap{id: "visitheatmap"}
	vh.updates = channerics.Convert(done, boards, vh.onUpdate)
	return
}

func (vh *VisitHeatmap) Updates() <-chan []fastview.EleUpdate {
	return vh.updates
}

// Returns the set of view updates needed for the view to reflect the current counts.
func (vh *VisitHeatmap) onUpdate(board Board) (ops []fastview.EleUpdate) {
	for _, row := range board.Cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-heat", cell.X, cell.Y),
					Ops: []fastview.Op{
						{Key: "fill-opacity", Value: fmt.Sprintf("%.2f", cell.Heat)},
					},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-visits", cell.X, cell.Y),
					Ops: []fastview.Op{
						{Key: fastview.TextContent, Value: fmt.Sprintf("%d", cell.Visits)},
					},
				})
		}
	}
	return
}

func (vh *VisitHeatmap) Parse(
	t *template.Template,
) (name string, err error) {
	name = vh.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<div id="` + vh.id + `-container">
			{{ $y_cells := len .Cells }}
			{{ $x_cells := len (index .Cells 0) }}
			{{ $cell_width := ` + fmt.Sprintf("%d", cellDim) + ` }}
			{{ $cell_height := $cell_width }}
			{{ $half_height := div $cell_height 2 }}
			{{ $half_width := div $cell_width 2 }}
			<svg id="` + vh.id + `"
				width="{{ add (mult $cell_width $x_cells) 1 }}px"
				height="{{ add (mult $cell_height $y_cells) 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<g>
						<rect id="{{$cell.X}}-{{$cell.Y}}-heat"
							x="{{ mult $cell.X $cell_width }}"
							y="{{ mult $cell.Y $cell_height }}"
							width="{{ $cell_width }}"
							height="{{ $cell_height }}"
							fill="crimson"
							fill-opacity="{{ printf "%.2f" $cell.Heat }}"
							stroke="black"
							stroke-width="1"/>
						<text id="{{$cell.X}}-{{$cell.Y}}-visits"
							x="{{ add (mult $cell.X $cell_width) $half_width }}"
							y="{{ add (mult $cell.Y $cell_height) $half_height }}"
							dominant-baseline="central" text-anchor="middle"
							>{{ $cell.Visits }}</text>
					</g>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
